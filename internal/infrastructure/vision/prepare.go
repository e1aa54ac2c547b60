package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/bep/imagemeta"
	"github.com/corona10/goimagehash"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/shadematch/backend/internal/domain"
)

// Defaults match the size the classifier was tuned on.
const (
	DefaultMaxDimension = 800
	DefaultMaxBytes     = 10 << 20
	// DefaultMaxPixels bounds width x height of an upload, checked before decoding
	DefaultMaxPixels = 40_000_000
)

var supportedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"webp": true,
}

// Preparer decodes uploads into classifier-ready images
type Preparer struct {
	maxDimension int
	maxBytes     int
	maxPixels    int
}

// NewPreparer creates a Preparer. Non-positive limits select the defaults.
func NewPreparer(maxDimension, maxBytes int) *Preparer {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Preparer{maxDimension: maxDimension, maxBytes: maxBytes, maxPixels: DefaultMaxPixels}
}

// Prepare checks the declared dimensions against the pixel budget, decodes
// data, downscales it so the long side fits maxDimension, applies its EXIF
// orientation and computes a perceptual hash.
func (p *Preparer) Prepare(data []byte) (*domain.PreparedImage, error) {
	if len(data) == 0 {
		return nil, domain.ErrEmptyImage
	}
	if len(data) > p.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrImageTooLarge, len(data), p.maxBytes)
	}

	imgCfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedImage, err)
	}
	if !supportedFormats[format] {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedImage, format)
	}
	if pixels := int64(imgCfg.Width) * int64(imgCfg.Height); pixels > int64(p.maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels",
			domain.ErrImageTooLarge, imgCfg.Width, imgCfg.Height, p.maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnsupportedImage, err)
	}

	img = downscale(img, p.maxDimension)
	img = applyOrientation(img, readOrientation(data))

	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return nil, fmt.Errorf("hash image: %w", err)
	}

	return &domain.PreparedImage{
		Image:  img,
		Hash:   fmt.Sprintf("%016x", hash.GetHash()),
		Format: format,
	}, nil
}

// downscale resizes img so neither side exceeds maxDimension, keeping the aspect ratio
func downscale(img image.Image, maxDimension int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDimension && h <= maxDimension {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = maxDimension
		nh = max(1, h*maxDimension/w)
	} else {
		nh = maxDimension
		nw = max(1, w*maxDimension/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}

// readOrientation returns the EXIF orientation (1..8), or 1 when absent or unreadable
func readOrientation(data []byte) int {
	orientation := 1

	_, err := imagemeta.Decode(imagemeta.Options{
		R:       bytes.NewReader(data),
		Sources: imagemeta.EXIF,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			return ti.Tag == "Orientation"
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			if v, ok := orientationValue(ti.Value); ok {
				orientation = v
			}
			return nil
		},
	})
	if err != nil {
		return 1
	}

	if orientation < 1 || orientation > 8 {
		return 1
	}
	return orientation
}

func orientationValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	}
	return 0, false
}

// applyOrientation rotates and flips img so it displays upright.
// Orientation values are those of the EXIF Orientation tag.
func applyOrientation(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// 5..8 swap width and height
	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var dx, dy int
			switch orientation {
			case 2:
				dx, dy = w-1-x, y
			case 3:
				dx, dy = w-1-x, h-1-y
			case 4:
				dx, dy = x, h-1-y
			case 5:
				dx, dy = y, x
			case 6:
				dx, dy = h-1-y, x
			case 7:
				dx, dy = h-1-y, w-1-x
			case 8:
				dx, dy = y, w-1-x
			}
			dst.Set(dx, dy, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
