package media

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func decode(t *testing.T, dataURL string) image.Image {
	t.Helper()
	_, payload, ok := strings.Cut(dataURL, ",")
	require.True(t, ok)
	raw, err := base64.StdEncoding.DecodeString(payload)
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func TestShrinkDownsizesLargeImages(t *testing.T) {
	out, err := Shrink(pngDataURL(t, 2560, 1280), MaxSide)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "data:image/jpeg;base64,"))
	b := decode(t, out).Bounds()
	assert.Equal(t, 1280, b.Dx())
	assert.Equal(t, 640, b.Dy())
}

func TestShrinkKeepsSmallImageSize(t *testing.T) {
	out, err := Shrink(pngDataURL(t, 300, 200), MaxSide)
	require.NoError(t, err)

	b := decode(t, out).Bounds()
	assert.Equal(t, 300, b.Dx())
	assert.Equal(t, 200, b.Dy())
}

func TestShrinkPassesRemoteLinksThrough(t *testing.T) {
	out, err := Shrink("https://cdn.example.com/ref.jpg", MaxSide)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/ref.jpg", out)
}

func TestShrinkRejectsGarbage(t *testing.T) {
	_, err := Shrink("data:image/png;base64,bm90LWFuLWltYWdl", MaxSide)
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = Shrink("data:text/plain,hola", MaxSide)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestShrinkAllDropsBlanks(t *testing.T) {
	out, err := ShrinkAll([]string{"", "  ", "https://x/y.png"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/y.png"}, out)
}
