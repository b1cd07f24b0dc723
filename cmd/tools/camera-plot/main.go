// Command camera-plot renders the camera positions recorded in a run's
// cameras.json as a top-down (X/Z) scatter plot. Handy for spotting
// capture gaps or mis-registered poses before a long training run.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	modelPath = flag.String("model", "", "Model output directory containing cameras.json")
	camerasIn = flag.String("cameras", "", "Explicit path to a cameras.json (overrides -model)")
	output    = flag.String("out", "camera_positions.png", "Output PNG path")
)

// cameraEntry is the subset of the cameras.json schema the plot needs.
type cameraEntry struct {
	ID       int        `json:"id"`
	ImgName  string     `json:"img_name"`
	Position [3]float64 `json:"position"`
}

func main() {
	flag.Parse()

	path := *camerasIn
	if path == "" {
		if *modelPath == "" {
			flag.Usage()
			os.Exit(2)
		}
		path = filepath.Join(*modelPath, "cameras.json")
	}

	entries, err := readCameras(path)
	if err != nil {
		log.Fatalf("failed to read cameras: %v", err)
	}
	if len(entries) == 0 {
		log.Fatalf("%s holds no cameras", path)
	}

	if err := plotCameras(entries, *output); err != nil {
		log.Fatalf("failed to plot cameras: %v", err)
	}
	fmt.Printf("plotted %d cameras to %s\n", len(entries), *output)
}

func readCameras(path string) ([]cameraEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []cameraEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entries, nil
}

func plotCameras(entries []cameraEntry, out string) error {
	pts := make(plotter.XYs, len(entries))
	for i, e := range entries {
		pts[i].X = e.Position[0]
		pts[i].Y = e.Position[2]
	}

	p := plot.New()
	p.Title.Text = "Camera positions"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "z"

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	p.Add(scatter, plotter.NewGrid())

	return p.Save(6*vg.Inch, 6*vg.Inch, out)
}
