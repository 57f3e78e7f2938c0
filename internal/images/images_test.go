package images

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	return img
}

func encoded(t *testing.T, format string, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	case "webp":
		err = webp.Encode(&buf, img, &webp.Options{Lossless: true})
	}
	require.NoError(t, err)
	return buf.Bytes()
}

func TestNormalizeFormats(t *testing.T) {
	for _, format := range []string{"png", "jpeg", "webp"} {
		t.Run(format, func(t *testing.T) {
			url, err := Normalize(encoded(t, format, solid(64, 32)), "upload."+format, 320, 320)
			require.NoError(t, err)
			require.True(t, len(url) > len("data:image/png;base64,"))

			img, err := DecodeDataURL(url)
			require.NoError(t, err)
			assert.Equal(t, 64, img.Bounds().Dx())
			assert.Equal(t, 32, img.Bounds().Dy())
		})
	}
}

func TestNormalizeShrinksKeepingAspect(t *testing.T) {
	w, h := SlotTeacherSignature.MaxSize()
	url, err := Normalize(encoded(t, "png", solid(960, 160)), "sig.png", w, h)
	require.NoError(t, err)

	img, err := DecodeDataURL(url)
	require.NoError(t, err)
	assert.Equal(t, 480, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())
}

func TestNormalizeRejects(t *testing.T) {
	_, err := Normalize(nil, "x.png", 10, 10)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = Normalize([]byte("GIF89a not really"), "x.gif", 10, 10)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = Normalize([]byte("\x89PNG\r\n\x1a\nbroken"), "x.png", 10, 10)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnsupported))
}

func TestParseSlot(t *testing.T) {
	for _, s := range []string{"logo", "signature_teacher", "signature_principal"} {
		slot, err := ParseSlot(s)
		require.NoError(t, err)
		assert.Equal(t, Slot(s), slot)
	}
	_, err := ParseSlot("banner")
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestSlotPatch(t *testing.T) {
	p := SlotPrincipalSignature.Patch("data:image/png;base64,AA==")
	require.NotNil(t, p.PrincipalSignature)
	assert.Equal(t, "data:image/png;base64,AA==", *p.PrincipalSignature)
	assert.Nil(t, p.Logo)
	assert.Nil(t, p.TeacherSignature)
}
