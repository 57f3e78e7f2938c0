package images

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/school-system/reportgen/internal/models"
)

var (
	ErrEmpty       = errors.New("empty image")
	ErrUnsupported = errors.New("unsupported image format")
	ErrUnknownSlot = errors.New("unknown image slot")
)

// Slot is one of the settings images.
type Slot string

const (
	SlotLogo               Slot = "logo"
	SlotTeacherSignature   Slot = "signature_teacher"
	SlotPrincipalSignature Slot = "signature_principal"
)

func ParseSlot(s string) (Slot, error) {
	switch Slot(s) {
	case SlotLogo, SlotTeacherSignature, SlotPrincipalSignature:
		return Slot(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSlot, s)
}

// MaxSize is the bounding box the slot's image is shrunk to.
func (s Slot) MaxSize() (int, int) {
	if s == SlotLogo {
		return 320, 320
	}
	return 480, 160
}

// Patch sets the slot's field on a settings patch.
func (s Slot) Patch(dataURL string) models.SettingsPatch {
	var p models.SettingsPatch
	switch s {
	case SlotLogo:
		p.Logo = &dataURL
	case SlotTeacherSignature:
		p.TeacherSignature = &dataURL
	case SlotPrincipalSignature:
		p.PrincipalSignature = &dataURL
	}
	return p
}

// Decode reads a png, jpeg or webp image, sniffing the content before
// falling back to the file extension.
func Decode(data []byte, filename string) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	ct := http.DetectContentType(head)

	format := ""
	switch {
	case strings.Contains(ct, "jpeg"):
		format = "jpeg"
	case strings.Contains(ct, "png"):
		format = "png"
	case strings.Contains(ct, "webp"):
		format = "webp"
	default:
		switch strings.ToLower(filepath.Ext(filename)) {
		case ".jpg", ".jpeg":
			format = "jpeg"
		case ".png":
			format = "png"
		case ".webp":
			format = "webp"
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, ct)
		}
	}

	r := bytes.NewReader(data)
	var (
		img image.Image
		err error
	)
	switch format {
	case "jpeg":
		img, err = jpeg.Decode(r)
	case "png":
		img, err = png.Decode(r)
	case "webp":
		img, err = webp.Decode(r)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}
	return img, nil
}

// Normalize decodes an uploaded image, shrinks it into maxW x maxH keeping
// its aspect ratio, and returns it as a PNG data URL.
func Normalize(data []byte, filename string, maxW, maxH int) (string, error) {
	img, err := Decode(data, filename)
	if err != nil {
		return "", err
	}

	b := img.Bounds()
	if b.Dx() > maxW || b.Dy() > maxH {
		img = imaging.Fit(img, maxW, maxH, imaging.CatmullRom)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeDataURL returns the image inside a data URL.
func DecodeDataURL(dataURL string) (image.Image, error) {
	const prefix = "data:image/"
	if !strings.HasPrefix(dataURL, prefix) {
		return nil, ErrUnsupported
	}
	comma := strings.IndexByte(dataURL, ',')
	if comma < 0 || !strings.HasSuffix(dataURL[:comma], ";base64") {
		return nil, ErrUnsupported
	}
	data, err := base64.StdEncoding.DecodeString(dataURL[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return Decode(data, "")
}
