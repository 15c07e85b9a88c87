// Package compositor renders a headline overlay onto article images so the
// resulting frame reads as a social post rather than a bare photo.
package compositor

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/jonesrussell/reelcast/internal/logger"
)

const (
	// PortraitWidth and PortraitHeight are the Instagram portrait canvas
	PortraitWidth  = 1080
	PortraitHeight = 1350

	// ReelWidth and ReelHeight are the 9:16 reel canvas
	ReelWidth  = 1080
	ReelHeight = 1920

	// padding frames the overlay content on all sides
	padding = 30

	// smallMargin is extra breathing room inside the overlay
	smallMargin = 8

	// minFontSize is the floor of the fitting loop
	minFontSize = 24

	// fontStep is the decrement between fitting attempts
	fontStep = 2

	// DefaultMinOverlayRatio bounds the overlay to at least this fraction
	// of the image height
	DefaultMinOverlayRatio = 0.12

	// DefaultMaxOverlayRatio caps the overlay at this fraction of the
	// image height
	DefaultMaxOverlayRatio = 0.5
)

// Options controls canvas size and overlay bounds.
type Options struct {
	Width           int
	Height          int
	MinOverlayRatio float64
	MaxOverlayRatio float64
	Watermark       string
	Quality         int
}

// DefaultOptions returns the portrait canvas with standard overlay bounds.
func DefaultOptions() Options {
	return Options{
		Width:           PortraitWidth,
		Height:          PortraitHeight,
		MinOverlayRatio: DefaultMinOverlayRatio,
		MaxOverlayRatio: DefaultMaxOverlayRatio,
		Quality:         100,
	}
}

// ReelOptions returns the 9:16 reel canvas with standard overlay bounds.
func ReelOptions() Options {
	return Options{
		Width:           ReelWidth,
		Height:          ReelHeight,
		MinOverlayRatio: DefaultMinOverlayRatio,
		MaxOverlayRatio: DefaultMaxOverlayRatio,
		Quality:         100,
	}
}

// Compositor lays a darkened band with category tag and wrapped headline
// over the bottom of an image.
type Compositor struct {
	fonts  FontProvider
	opts   Options
	logger logger.Logger
}

func New(fonts FontProvider, opts Options, log logger.Logger) *Compositor {
	if opts.Width == 0 || opts.Height == 0 {
		opts.Width = PortraitWidth
		opts.Height = PortraitHeight
	}
	if opts.MinOverlayRatio == 0 {
		opts.MinOverlayRatio = DefaultMinOverlayRatio
	}
	if opts.MaxOverlayRatio == 0 {
		opts.MaxOverlayRatio = DefaultMaxOverlayRatio
	}
	if opts.Quality == 0 {
		opts.Quality = 100
	}
	return &Compositor{fonts: fonts, opts: opts, logger: log}
}

// Render decodes the image, normalizes it to the portrait canvas, and draws
// the headline overlay. Rendering is best-effort: any failure returns the
// original bytes so a broken image never blocks a post.
func (c *Compositor) Render(data []byte, headline, category string) []byte {
	out, err := c.render(data, headline, category)
	if err != nil {
		c.logger.Warn("Overlay rendering failed, using original image",
			logger.Error(err),
		)
		return data
	}
	return out
}

func (c *Compositor) render(data []byte, headline, category string) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	img = c.normalize(img)
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	layout, err := c.fitHeadline(headline, width, height)
	if err != nil {
		return nil, err
	}

	overlayHeight := clamp(layout.contentHeight,
		int(float64(height)*c.opts.MinOverlayRatio),
		int(float64(height)*c.opts.MaxOverlayRatio))
	if layout.contentHeight > overlayHeight {
		// Floor-size layout exceeds the cap: grow the band rather than
		// cut headline lines, bounded by the canvas itself.
		overlayHeight = min(layout.contentHeight, height)
	}
	overlayStart := height - overlayHeight

	dc := gg.NewContext(width, height)
	dc.DrawImage(img, 0, 0)

	// Semi-transparent band at the bottom
	dc.SetRGBA255(0, 0, 0, 180)
	dc.DrawRectangle(0, float64(overlayStart), float64(width), float64(overlayHeight))
	dc.Fill()

	y := float64(overlayStart + padding)

	// Category tag in gold above the headline
	sectionFace, err := c.fonts.Face(float64(layout.fontSize) * 0.7)
	if err != nil {
		return nil, err
	}
	dc.SetFontFace(sectionFace)
	dc.SetRGB255(255, 215, 0)
	dc.DrawStringAnchored("#"+strings.ToUpper(category), padding, y, 0, 1)
	y += float64(layout.fontSize) * 0.9

	// Headline lines in white
	titleFace, err := c.fonts.Face(float64(layout.fontSize))
	if err != nil {
		return nil, err
	}
	dc.SetFontFace(titleFace)
	dc.SetRGB255(255, 255, 255)
	for _, line := range layout.lines {
		dc.DrawStringAnchored(line, padding, y, 0, 1)
		y += float64(layout.fontSize) * 1.15
	}

	if c.opts.Watermark != "" {
		dc.SetFontFace(sectionFace)
		dc.SetRGBA255(255, 255, 255, 140)
		dc.DrawStringAnchored(c.opts.Watermark, float64(width-padding), float64(height-padding), 1, 0)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: c.opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// normalize converts landscape sources to the portrait canvas by center
// cropping to 4:5, and upscales undersized portrait sources.
func (c *Compositor) normalize(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w > h {
		targetH := h
		targetW := int(float64(targetH) * float64(c.opts.Width) / float64(c.opts.Height))
		if targetW > w {
			targetW = w
			targetH = int(float64(targetW) * float64(c.opts.Height) / float64(c.opts.Width))
		}
		img = imaging.CropCenter(img, targetW, targetH)
		return imaging.Resize(img, c.opts.Width, c.opts.Height, imaging.Lanczos)
	}

	if w < c.opts.Width || h < c.opts.Height {
		scale := max(float64(c.opts.Width)/float64(w), float64(c.opts.Height)/float64(h))
		return imaging.Resize(img, int(float64(w)*scale), int(float64(h)*scale), imaging.Lanczos)
	}
	return img
}

// headlineLayout is the result of the font fitting loop.
type headlineLayout struct {
	fontSize      int
	lines         []string
	contentHeight int
}

// fitHeadline decreases the font size until the wrapped headline fits the
// overlay height cap. When even the minimum size does not fit, the minimum
// is used and the overlay is clamped at render time.
func (c *Compositor) fitHeadline(headline string, width, height int) (*headlineLayout, error) {
	maxOverlayPx := int(float64(height) * c.opts.MaxOverlayRatio)
	baseSize := width / 10
	if baseSize < 90 {
		baseSize = 90
	}

	var last *headlineLayout
	for size := baseSize; size >= minFontSize; size -= fontStep {
		layout, err := c.wrap(headline, size, width)
		if err != nil {
			return nil, err
		}
		last = layout
		if layout.contentHeight <= maxOverlayPx {
			return layout, nil
		}
	}

	c.logger.Warn("Headline too long for overlay bounds, using minimum font",
		logger.Int("font_size", last.fontSize),
		logger.Int("content_height", last.contentHeight),
	)
	return last, nil
}

// wrap breaks the headline into lines that fit the available width at the
// given font size and measures the resulting overlay height.
func (c *Compositor) wrap(headline string, fontSize, width int) (*headlineLayout, error) {
	face, err := c.fonts.Face(float64(fontSize))
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(1, 1)
	dc.SetFontFace(face)
	availableWidth := float64(width - 2*padding)

	var lines []string
	var current []string
	for _, word := range strings.Fields(headline) {
		test := strings.Join(append(current, word), " ")
		if w, _ := dc.MeasureString(test); w <= availableWidth {
			current = append(current, word)
			continue
		}
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
			current = []string{word}
		} else {
			lines = append(lines, word)
		}
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}

	sectionHeight := int(float64(fontSize) * 0.9)
	titleHeight := len(lines) * int(float64(fontSize)*1.15)
	contentHeight := sectionHeight + titleHeight + 2*padding + smallMargin

	return &headlineLayout{
		fontSize:      fontSize,
		lines:         lines,
		contentHeight: contentHeight,
	}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
