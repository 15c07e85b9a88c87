package compositor

import (
	"fmt"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontProvider produces font faces at a requested point size.
type FontProvider interface {
	Face(points float64) (font.Face, error)
}

// defaultFontPaths are probed in order when no explicit font path is configured
var defaultFontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Bold.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"/Library/Fonts/Arial.ttf",
}

// TTFProvider serves faces from a single parsed TrueType font.
type TTFProvider struct {
	font *opentype.Font
}

// NewProvider loads a font for overlay rendering. The explicit path wins,
// then the OS font probe, then the bundled Go Regular face so rendering
// never depends on host fonts.
func NewProvider(path string) (*TTFProvider, error) {
	paths := defaultFontPaths
	if path != "" {
		paths = append([]string{path}, paths...)
	}

	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		f, err := opentype.Parse(data)
		if err != nil {
			continue
		}
		return &TTFProvider{font: f}, nil
	}

	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bundled font: %w", err)
	}
	return &TTFProvider{font: f}, nil
}

func (p *TTFProvider) Face(points float64) (font.Face, error) {
	face, err := opentype.NewFace(p.font, &opentype.FaceOptions{
		Size:    points,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face at %.0fpt: %w", points, err)
	}
	return face, nil
}
