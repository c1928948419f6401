package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	stddraw "image/draw"
	"image/jpeg"
	_ "image/png"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

const (
	// MaxImageBytes caps the size of an uploaded product image.
	MaxImageBytes = 2 << 20
	// MaxImageDim bounds both sides of a stored image.
	MaxImageDim = 1200
	imageQuality = 70
)

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// NormalizeImage validates an uploaded image and re-encodes it as a JPEG
// that fits within MaxImageDim x MaxImageDim. Transparent areas become white.
func NormalizeImage(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}
	if len(data) > MaxImageBytes {
		return nil, fmt.Errorf("%w: image size must be less than %s", ErrInvalidInput, humanize.IBytes(MaxImageBytes))
	}
	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return nil, fmt.Errorf("%w: please select a valid image file (JPEG, PNG, or WebP)", ErrInvalidInput)
	}

	src, err := decodeImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to decode image", ErrInvalidInput)
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: invalid image dimensions", ErrInvalidInput)
	}

	w, h := fitWithin(b.Dx(), b.Dy(), MaxImageDim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	stddraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, stddraw.Src)
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: imageQuality}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return out.Bytes(), nil
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	if webpImg, webpErr := webp.Decode(bytes.NewReader(data)); webpErr == nil {
		return webpImg, nil
	}
	return nil, errors.Join(err, errors.New("not a supported image"))
}

// fitWithin scales w x h down to fit a limit x limit box, keeping the aspect ratio.
func fitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		nh := h * limit / w
		if nh < 1 {
			nh = 1
		}
		return limit, nh
	}
	nw := w * limit / h
	if nw < 1 {
		nw = 1
	}
	return nw, limit
}
