package generate

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	// Registered decoders for image.Decode.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/postly/postly/internal/ailink"
)

// Image defaults.
const (
	DefaultMaxDimension = 1568
	DefaultJPEGQuality  = 85
	// DefaultMaxPixels caps the decoded size of an upload (about 96 MiB as RGBA).
	DefaultMaxPixels = 24_000_000
)

const defaultMediaType = "image/jpeg"

// ImageOptions controls how uploads are prepared for the model.
type ImageOptions struct {
	MaxDimension int
	JPEGQuality  int
	// MaxPixels bounds width*height of images that are decoded. Larger
	// images are forwarded unchanged.
	MaxPixels int
}

func (o ImageOptions) withDefaults() ImageOptions {
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	if o.JPEGQuality < 1 || o.JPEGQuality > 100 {
		o.JPEGQuality = DefaultJPEGQuality
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	return o
}

// PrepareImage bounds the image's longest side by MaxDimension and
// re-encodes it as JPEG. A JPEG already within bounds is passed through.
// Bytes that do not decode, or whose header declares more than MaxPixels,
// are forwarded unchanged as image/jpeg.
func PrepareImage(data []byte, opts ImageOptions) ailink.Image {
	opts = opts.withDefaults()
	unchanged := ailink.Image{Data: data, MediaType: defaultMediaType}

	// The header is checked before decoding so a small file cannot claim a
	// huge canvas.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return unchanged
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(opts.MaxPixels) {
		return unchanged
	}
	if format == "jpeg" && max(cfg.Width, cfg.Height) <= opts.MaxDimension {
		return unchanged
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return unchanged
	}
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return unchanged
	}

	newW, newH := scaledSize(width, height, opts.MaxDimension)

	// Flatten onto white so transparent PNG/GIF regions do not turn black.
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: opts.JPEGQuality}); err != nil {
		return unchanged
	}
	return ailink.Image{Data: buf.Bytes(), MediaType: defaultMediaType}
}

func scaledSize(width, height, maxSize int) (int, int) {
	scale := float64(maxSize) / float64(max(width, height))
	if scale > 1 {
		scale = 1
	}
	newW := int(float64(width) * scale)
	newH := int(float64(height) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return newW, newH
}
