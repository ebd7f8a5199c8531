package imagestore

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/apex/log"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	maxDimension = 1024 // Maximum width or height in pixels
	jpegQuality  = 85
)

// Compress downscales an image to fit within maxDimension on both axes,
// correcting EXIF orientation, and re-encodes it as JPEG. Images already
// within limits are returned unchanged.
func Compress(data []byte) ([]byte, error) {
	orientation := exifOrientation(data)

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	if orientation != 1 {
		img = orient(img, orientation)
		log.Infof("applied orientation correction: %d", orientation)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxDimension && height <= maxDimension && orientation == 1 {
		return data, nil
	}

	scale := float64(maxDimension) / float64(width)
	if s := float64(maxDimension) / float64(height); s < scale {
		scale = s
	}
	if scale > 1 {
		scale = 1
	}

	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)

	scaled := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding compressed image: %w", err)
	}

	log.Infof("image compressed: %d bytes -> %d bytes (%dx%d -> %dx%d)",
		len(data), buf.Len(), width, height, newWidth, newHeight)
	return buf.Bytes(), nil
}

// exifOrientation returns the EXIF orientation tag, defaulting to 1 when the
// image carries none.
func exifOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// orient rewrites pixels so the image displays upright regardless of how the
// camera was held.
func orient(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	ow, oh := w, h
	if orientation >= 5 { // Axes swap for the rotated orientations.
		ow, oh = h, w
	}
	out := image.NewRGBA(image.Rect(0, 0, ow, oh))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := img.At(b.Min.X+x, b.Min.Y+y)
			switch orientation {
			case 2: // Flip horizontal
				out.Set(w-1-x, y, px)
			case 3: // Rotate 180
				out.Set(w-1-x, h-1-y, px)
			case 4: // Flip vertical
				out.Set(x, h-1-y, px)
			case 5: // Transpose
				out.Set(y, x, px)
			case 6: // Rotate 90 clockwise
				out.Set(h-1-y, x, px)
			case 7: // Transverse
				out.Set(h-1-y, w-1-x, px)
			case 8: // Rotate 90 counter-clockwise
				out.Set(y, w-1-x, px)
			}
		}
	}
	return out
}
