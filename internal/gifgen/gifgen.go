// Package gifgen encodes recorded step frames into an audit GIF.
package gifgen

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"
	"sort"

	"github.com/nfnt/resize"
)

// Options configures GIF generation
type Options struct {
	FPS      int  // frames per second; audit reels default to 1
	MaxWidth uint // frames wider than this are scaled down; default 800

	// Reserved colors are always in the palette, so outlines drawn on the
	// frames keep their exact color.
	Reserved []color.Color
}

// Generate writes frames to outputPath and returns the file size.
func Generate(frames []image.Image, outputPath string, opts Options) (int64, error) {
	if len(frames) == 0 {
		return 0, fmt.Errorf("no frames to encode")
	}
	if opts.FPS <= 0 {
		opts.FPS = 1
	}
	if opts.MaxWidth == 0 {
		opts.MaxWidth = 800
	}

	// Delay is in 100ths of a second
	delay := max(100/opts.FPS, 1)

	bounds := frames[0].Bounds()
	outputWidth := min(opts.MaxWidth, uint(bounds.Dx()))
	aspectRatio := float64(bounds.Dy()) / float64(bounds.Dx())
	outputHeight := max(uint(float64(outputWidth)*aspectRatio), 1)

	g := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     make([]int, len(frames)),
		LoopCount: 0,
	}

	palette := generatePalette(frames[0], opts.Reserved...)

	for i, frame := range frames {
		resized := frame
		if uint(frame.Bounds().Dx()) != outputWidth || uint(frame.Bounds().Dy()) != outputHeight {
			resized = resize.Resize(outputWidth, outputHeight, frame, resize.Lanczos3)
		}

		paletted := image.NewPaletted(image.Rect(0, 0, int(outputWidth), int(outputHeight)), palette)
		draw.FloydSteinberg.Draw(paletted, paletted.Bounds(), resized, resized.Bounds().Min)

		g.Image[i] = paletted
		g.Delay[i] = delay
	}

	if dir := filepath.Dir(outputPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := gif.EncodeAll(f, g); err != nil {
		return 0, err
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// generatePalette builds a 256-color palette from the reserved colors and
// the most frequent colors of img.
func generatePalette(img image.Image, reserved ...color.Color) color.Palette {
	bounds := img.Bounds()
	colorMap := make(map[color.RGBA]int)

	// Sample every 4th pixel
	step := 4
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			r, g, b, a := img.At(x, y).RGBA()
			colorMap[color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}]++
		}
	}

	type colorCount struct {
		c     color.RGBA
		count int
	}
	colors := make([]colorCount, 0, len(colorMap))
	for c, count := range colorMap {
		colors = append(colors, colorCount{c, count})
	}
	sort.Slice(colors, func(i, j int) bool {
		if colors[i].count != colors[j].count {
			return colors[i].count > colors[j].count
		}
		a, b := colors[i].c, colors[j].c
		return uint32(a.R)<<24|uint32(a.G)<<16|uint32(a.B)<<8|uint32(a.A) <
			uint32(b.R)<<24|uint32(b.G)<<16|uint32(b.B)<<8|uint32(b.A)
	})

	palette := make(color.Palette, 0, 256)
	palette = append(palette, color.RGBA{0, 0, 0, 0})
	palette = append(palette, reserved...)

	for i := 0; i < len(colors) && len(palette) < 256; i++ {
		palette = append(palette, colors[i].c)
	}

	// Pad with grayscale
	for len(palette) < 256 {
		gray := uint8(len(palette))
		palette = append(palette, color.RGBA{gray, gray, gray, 255})
	}
	return palette
}
