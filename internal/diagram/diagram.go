// Package diagram draws board diagrams for graph nodes.
package diagram

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/notnil/chess"
	chessimage "github.com/notnil/chess/image"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/colornames"

	"github.com/hailam/chessgraph/internal/position"
)

// Style selects how diagrams are drawn.
type Style string

const (
	StyleNone    Style = "none"
	StyleUnicode Style = "unicode"
	StyleSVG     Style = "svg"
	StylePNG     Style = "png"
)

// ParseStyle validates a board style name.
func ParseStyle(s string) (Style, error) {
	switch st := Style(s); st {
	case StyleNone, StyleUnicode, StyleSVG, StylePNG:
		return st, nil
	}
	return "", fmt.Errorf("unknown board style %q (want none, unicode, svg or png)", s)
}

// EmptySquare fills squares without a piece in text diagrams.
const EmptySquare = "·"

// Unicode returns eight lines of piece glyphs, rank 8 first.
func Unicode(pos position.Position) string {
	b := pos.Board()
	if b == nil {
		return ""
	}
	squares := b.SquareMap()
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		for file := 0; file < 8; file++ {
			if file > 0 {
				sb.WriteByte(' ')
			}
			p, ok := squares[chess.Square(rank*8+file)]
			if !ok || p == chess.NoPiece {
				sb.WriteString(EmptySquare)
				continue
			}
			sb.WriteString(p.String())
		}
		if rank > 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// SVG writes the diagram as an SVG document.
func SVG(w io.Writer, pos position.Position) error {
	b := pos.Board()
	if b == nil {
		return fmt.Errorf("empty position")
	}
	return chessimage.SVG(w, b, chessimage.SquareColors(colornames.Wheat, colornames.Burlywood))
}

// PNG rasterizes the SVG diagram to a size×size image.
func PNG(w io.Writer, pos position.Position, size int) error {
	var buf bytes.Buffer
	if err := SVG(&buf, pos); err != nil {
		return err
	}
	icon, err := oksvg.ReadIconStream(&buf, oksvg.IgnoreErrorMode)
	if err != nil {
		return fmt.Errorf("parse diagram: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, rgba, rgba.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	return png.Encode(w, rgba)
}

// FileName is a stable file name for the diagram of pos.
func FileName(pos position.Position, ext string) string {
	return fmt.Sprintf("node-%016x.%s", xxhash.Sum64String(pos.Key()), ext)
}

// The XML prolog lets dot embed the image when the output is SVG as well.
const svgProlog = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>` + "\n"

// Renderer writes diagram files to a directory and returns the node
// attributes that show them.
type Renderer struct {
	style Style
	dir   string
	size  int
}

// NewRenderer creates a renderer. dir receives svg and png files.
func NewRenderer(style Style, dir string) *Renderer {
	if dir == "" {
		dir = "."
	}
	return &Renderer{style: style, dir: dir, size: 240}
}

// Attrs returns DOT attributes (unquoted values) displaying pos. It returns
// nil for StyleNone.
func (r *Renderer) Attrs(pos position.Position) (map[string]string, error) {
	switch r.style {
	case StyleUnicode:
		return map[string]string{"fontname": "Courier", "label": Unicode(pos)}, nil
	case StyleSVG, StylePNG:
		name, err := r.write(pos)
		if err != nil {
			return nil, err
		}
		return map[string]string{"label": "", "image": name}, nil
	}
	return nil, nil
}

func (r *Renderer) write(pos position.Position) (string, error) {
	ext := string(r.style)
	path := filepath.Join(r.dir, FileName(pos, ext))
	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if r.style == StyleSVG {
		if _, err = io.WriteString(f, svgProlog); err == nil {
			err = SVG(f, pos)
		}
	} else {
		err = PNG(f, pos, r.size)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write diagram %s: %w", path, err)
	}
	return path, nil
}
