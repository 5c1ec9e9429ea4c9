// Package cropper cuts detected cards out of scan images.
package cropper

import (
	"bytes"
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "golang.org/x/image/webp"

	"cardvault/pkg/models"
)

const jpegQuality = 95

// ImageStore persists encoded crops
type ImageStore interface {
	SaveCropped(id string, data []byte) (string, error)
	Remove(path string) error
}

// Cropper turns a normalized bounding box into a JPEG under the crop namespace.
// Failures never propagate: a crop either exists or it doesn't.
type Cropper struct {
	store  ImageStore
	cache  *lru.Cache[string, image.Image]
	logger *slog.Logger
}

// New creates a Cropper. Decoded source images are kept in an LRU of
// cacheSize entries so that every card of a multi-card scan is cut from a
// single decode; a cacheSize below one disables the cache.
func New(store ImageStore, cacheSize int, logger *slog.Logger) *Cropper {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cropper{store: store, logger: logger}
	if cacheSize > 0 {
		cache, err := lru.New[string, image.Image](cacheSize)
		if err == nil {
			c.cache = cache
		}
	}
	return c
}

// PixelRect maps a normalized box onto a width x height raster. The result
// always satisfies 0 <= left <= right <= width and 0 <= top <= bottom <= height.
func PixelRect(width, height int, box models.BoundingBox) image.Rectangle {
	w, h := float64(width), float64(height)
	left := clamp(box.X*w, 0, w)
	top := clamp(box.Y*h, 0, h)
	right := clamp((box.X+box.Width)*w, left, w)
	bottom := clamp((box.Y+box.Height)*h, top, h)
	return image.Rect(int(left), int(top), int(right), int(bottom))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Crop cuts box out of src and stores it under id. It reports false when the
// box covers no pixels or the crop could not be written.
func (c *Cropper) Crop(src image.Image, box models.BoundingBox, id string) (string, bool) {
	bounds := src.Bounds()
	rect := PixelRect(bounds.Dx(), bounds.Dy(), box)
	if rect.Empty() {
		c.logger.Debug("crop skipped, empty region", "id", id, "box", box)
		return "", false
	}

	cropped := imaging.Crop(src, rect.Add(bounds.Min))

	var out image.Image = cropped
	if _, paletted := src.(*image.Paletted); paletted || !cropped.Opaque() {
		out = flatten(cropped)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		c.logger.Warn("crop encode failed", "id", id, "error", err)
		return "", false
	}

	path, err := c.store.SaveCropped(id, buf.Bytes())
	if err != nil {
		c.logger.Warn("crop write failed", "id", id, "error", err)
		return "", false
	}
	return path, true
}

// CropFromFile decodes sourcePath, honoring EXIF orientation, and crops it
func (c *Cropper) CropFromFile(sourcePath string, box models.BoundingBox, id string) (string, bool) {
	src, err := c.load(sourcePath)
	if err != nil {
		c.logger.Warn("crop source unreadable", "id", id, "source", sourcePath, "error", err)
		return "", false
	}
	return c.Crop(src, box, id)
}

// Remove deletes a crop written earlier. Errors are logged only.
func (c *Cropper) Remove(path string) {
	if path == "" {
		return
	}
	if err := c.store.Remove(path); err != nil {
		c.logger.Warn("crop cleanup failed", "path", path, "error", err)
	}
}

func (c *Cropper) load(path string) (image.Image, error) {
	if c.cache != nil {
		if img, ok := c.cache.Get(path); ok {
			return img, nil
		}
	}
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Add(path, img)
	}
	return img, nil
}

// flatten composites img onto white, dropping alpha and palette
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
