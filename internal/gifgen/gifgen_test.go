package gifgen

import (
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestGenerate(t *testing.T) {
	red := color.RGBA{219, 68, 55, 255}
	frames := []image.Image{
		solid(1600, 900, color.RGBA{255, 255, 255, 255}),
		solid(1600, 900, color.RGBA{0, 0, 0, 255}),
	}
	path := filepath.Join(t.TempDir(), "reels", "run.gif")

	size, err := Generate(frames, path, Options{FPS: 2, MaxWidth: 400, Reserved: []color.Color{red}})
	require.NoError(t, err)
	assert.Positive(t, size)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)

	require.Len(t, g.Image, 2)
	assert.Equal(t, []int{50, 50}, g.Delay)
	assert.Equal(t, 400, g.Image[0].Bounds().Dx())
	assert.Equal(t, 225, g.Image[0].Bounds().Dy())
}

func TestGenerateKeepsSmallFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.gif")
	_, err := Generate([]image.Image{solid(4, 4, color.RGBA{240, 240, 240, 255})}, path, Options{})
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Image[0].Bounds().Dx())
	assert.Equal(t, []int{100}, g.Delay)
}

func TestGenerateNoFrames(t *testing.T) {
	_, err := Generate(nil, filepath.Join(t.TempDir(), "x.gif"), Options{})
	assert.Error(t, err)
}

func TestGeneratePaletteReservesColors(t *testing.T) {
	red := color.RGBA{219, 68, 55, 255}
	p := generatePalette(solid(8, 8, color.RGBA{255, 255, 255, 255}), red)

	require.Len(t, p, 256)
	assert.Equal(t, color.Color(red), p[1])
	assert.Equal(t, color.Color(color.RGBA{255, 255, 255, 255}), p[2])
}
