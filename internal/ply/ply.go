// Package ply reads and writes point clouds in the PLY polygon format.
//
// Only the vertex schema used by the training pipeline is supported:
// positions, optional normals and optional 8-bit colours. Both ascii and
// binary_little_endian encodings are handled; faces and custom elements
// are not.
package ply

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Format selects the on-disk encoding for Write.
type Format int

const (
	// BinaryLittleEndian writes float32/uchar fields in little-endian order.
	BinaryLittleEndian Format = iota
	// ASCII writes one whitespace-separated vertex per line.
	ASCII
)

var (
	ErrNotPLY      = errors.New("ply: missing magic header")
	ErrBadHeader   = errors.New("ply: malformed header")
	ErrUnsupported = errors.New("ply: unsupported format")
)

// PointCloud is a columnar point set. Colors are normalised to [0,1];
// Colors and Normals may be nil, otherwise they match len(Points).
type PointCloud struct {
	Points  [][3]float64
	Colors  [][3]float64
	Normals [][3]float64
}

// Len returns the number of points.
func (pc *PointCloud) Len() int { return len(pc.Points) }

// Write encodes pc to w in the given format.
func Write(w io.Writer, pc *PointCloud, format Format) error {
	bw := bufio.NewWriter(w)

	formatLine := "binary_little_endian"
	if format == ASCII {
		formatLine = "ascii"
	}
	fmt.Fprintf(bw, "ply\nformat %s 1.0\n", formatLine)
	fmt.Fprintf(bw, "element vertex %d\n", len(pc.Points))
	for _, p := range []string{"x", "y", "z", "nx", "ny", "nz"} {
		fmt.Fprintf(bw, "property float %s\n", p)
	}
	for _, p := range []string{"red", "green", "blue"} {
		fmt.Fprintf(bw, "property uchar %s\n", p)
	}
	fmt.Fprint(bw, "end_header\n")

	for i, pt := range pc.Points {
		var n [3]float64
		if pc.Normals != nil {
			n = pc.Normals[i]
		}
		var c [3]uint8
		if pc.Colors != nil {
			c = colorBytes(pc.Colors[i])
		}

		if format == ASCII {
			fmt.Fprintf(bw, "%g %g %g %g %g %g %d %d %d\n",
				pt[0], pt[1], pt[2], n[0], n[1], n[2], c[0], c[1], c[2])
			continue
		}

		var buf [27]byte
		for j := 0; j < 3; j++ {
			binary.LittleEndian.PutUint32(buf[j*4:], math.Float32bits(float32(pt[j])))
			binary.LittleEndian.PutUint32(buf[12+j*4:], math.Float32bits(float32(n[j])))
			buf[24+j] = c[j]
		}
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// property describes one vertex property from the header.
type property struct {
	name string
	typ  string
}

func (p property) size() (int, error) {
	switch p.typ {
	case "char", "uchar", "int8", "uint8":
		return 1, nil
	case "short", "ushort", "int16", "uint16":
		return 2, nil
	case "int", "uint", "int32", "uint32", "float", "float32":
		return 4, nil
	case "double", "float64":
		return 8, nil
	}
	return 0, fmt.Errorf("%w: property type %q", ErrUnsupported, p.typ)
}

// Read decodes a point cloud from r. Properties other than positions,
// normals and colours are skipped.
func Read(r io.Reader) (*PointCloud, error) {
	br := bufio.NewReader(r)

	magic, err := readHeaderLine(br)
	if err != nil || magic != "ply" {
		return nil, ErrNotPLY
	}

	var (
		format string
		count  int
		props  []property
	)
	inVertex := false
	for {
		line, err := readHeaderLine(br)
		if err != nil {
			return nil, ErrBadHeader
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "comment", "obj_info":
		case "format":
			if len(fields) < 2 {
				return nil, ErrBadHeader
			}
			format = fields[1]
		case "element":
			if len(fields) < 3 {
				return nil, ErrBadHeader
			}
			inVertex = fields[1] == "vertex"
			if inVertex {
				count, err = strconv.Atoi(fields[2])
				if err != nil || count < 0 {
					return nil, ErrBadHeader
				}
			}
		case "property":
			if !inVertex {
				continue
			}
			if fields[1] == "list" {
				return nil, fmt.Errorf("%w: list property on vertex element", ErrUnsupported)
			}
			if len(fields) < 3 {
				return nil, ErrBadHeader
			}
			props = append(props, property{name: fields[2], typ: fields[1]})
		case "end_header":
			goto body
		default:
			return nil, fmt.Errorf("%w: header keyword %q", ErrBadHeader, fields[0])
		}
	}

body:
	switch format {
	case "ascii":
		return readASCII(br, count, props)
	case "binary_little_endian":
		return readBinary(br, count, props)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupported, format)
}

func readHeaderLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func readASCII(br *bufio.Reader, count int, props []property) (*PointCloud, error) {
	pc := newCloud(count, props)
	for i := 0; i < count; i++ {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("ply: vertex %d: %w", i, err)
		}
		fields := strings.Fields(line)
		if len(fields) != len(props) {
			return nil, fmt.Errorf("ply: vertex %d has %d fields, want %d", i, len(fields), len(props))
		}
		for j, p := range props {
			v, err := strconv.ParseFloat(fields[j], 64)
			if err != nil {
				return nil, fmt.Errorf("ply: vertex %d property %s: %w", i, p.name, err)
			}
			pc.set(i, p, v)
		}
	}
	return pc.cloud, nil
}

func readBinary(br *bufio.Reader, count int, props []property) (*PointCloud, error) {
	pc := newCloud(count, props)
	sizes := make([]int, len(props))
	stride := 0
	for j, p := range props {
		n, err := p.size()
		if err != nil {
			return nil, err
		}
		sizes[j] = n
		stride += n
	}

	buf := make([]byte, stride)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("ply: vertex %d: %w", i, err)
		}
		off := 0
		for j, p := range props {
			pc.set(i, p, decodeScalar(buf[off:off+sizes[j]], p.typ))
			off += sizes[j]
		}
	}
	return pc.cloud, nil
}

func decodeScalar(b []byte, typ string) float64 {
	switch typ {
	case "char", "int8":
		return float64(int8(b[0]))
	case "uchar", "uint8":
		return float64(b[0])
	case "short", "int16":
		return float64(int16(binary.LittleEndian.Uint16(b)))
	case "ushort", "uint16":
		return float64(binary.LittleEndian.Uint16(b))
	case "int", "int32":
		return float64(int32(binary.LittleEndian.Uint32(b)))
	case "uint", "uint32":
		return float64(binary.LittleEndian.Uint32(b))
	case "float", "float32":
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case "double", "float64":
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return 0
}

// cloudBuilder routes decoded property values into PointCloud columns.
type cloudBuilder struct {
	cloud *PointCloud
}

func newCloud(count int, props []property) *cloudBuilder {
	pc := &PointCloud{Points: make([][3]float64, count)}
	for _, p := range props {
		switch p.name {
		case "nx", "ny", "nz":
			if pc.Normals == nil {
				pc.Normals = make([][3]float64, count)
			}
		case "red", "green", "blue":
			if pc.Colors == nil {
				pc.Colors = make([][3]float64, count)
			}
		}
	}
	return &cloudBuilder{cloud: pc}
}

func (b *cloudBuilder) set(i int, p property, v float64) {
	switch p.name {
	case "x":
		b.cloud.Points[i][0] = v
	case "y":
		b.cloud.Points[i][1] = v
	case "z":
		b.cloud.Points[i][2] = v
	case "nx":
		b.cloud.Normals[i][0] = v
	case "ny":
		b.cloud.Normals[i][1] = v
	case "nz":
		b.cloud.Normals[i][2] = v
	case "red":
		b.cloud.Colors[i][0] = v / 255
	case "green":
		b.cloud.Colors[i][1] = v / 255
	case "blue":
		b.cloud.Colors[i][2] = v / 255
	}
}

func colorBytes(c [3]float64) [3]uint8 {
	var out [3]uint8
	for i, v := range c {
		scaled := math.Round(v * 255)
		if scaled < 0 {
			scaled = 0
		} else if scaled > 255 {
			scaled = 255
		}
		out[i] = uint8(scaled)
	}
	return out
}
