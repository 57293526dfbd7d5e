package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MasterMaxSize bounds both sides of the stored master, in pixels.
const MasterMaxSize = 2048

// Rendition formats, as accepted by ImageService.Open.
const (
	ImageFormatJPEG = "jpg"
	ImageFormatWebP = "webp"
)

// rendition is one stored encoding of an upload's master.
type rendition struct {
	format   string
	mimeType string
	encode   func(io.Writer, image.Image) error
}

// renditions are written in order; the first is the canonical master
// recorded on the Image row.
var renditions = []rendition{
	{ImageFormatJPEG, "image/jpeg", func(w io.Writer, img image.Image) error {
		return jpeg.Encode(w, flatten(img), &jpeg.Options{Quality: 82})
	}},
	{ImageFormatWebP, "image/webp", func(w io.Writer, img image.Image) error {
		return webp.Encode(w, img, &webp.Options{Quality: 70})
	}},
}

func renditionFor(format string) rendition {
	for _, r := range renditions {
		if r.format == format {
			return r
		}
	}
	return renditions[0]
}

func (r rendition) render(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.format, err)
	}
	return buf.Bytes(), nil
}

// decoderMIME maps image.Decode format names to the MIME type they sniff as.
var decoderMIME = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// uploadError is a client-facing rejection reason.
type uploadError string

func (e uploadError) Error() string { return string(e) }

// decodeUpload sniffs, decodes and cross-checks an uploaded image against
// the client's declared content type. Non-image declarations are ignored.
func decodeUpload(content []byte, declared string) (image.Image, error) {
	sniffed := mediaType(http.DetectContentType(content))
	if !strings.HasPrefix(sniffed, "image/") {
		return nil, uploadError("Invalid image type")
	}

	img, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, uploadError("Invalid image file")
	}
	actual, ok := decoderMIME[format]
	if !ok {
		return nil, uploadError("Unsupported image format")
	}

	declared = mediaType(declared)
	if declared == "image/jpg" {
		declared = "image/jpeg"
	}
	if strings.HasPrefix(declared, "image/") && declared != actual {
		return nil, uploadError("Image content type mismatch")
	}
	return img, nil
}

func mediaType(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// fitWithin scales src down, keeping its aspect ratio, so neither side
// exceeds limit. Smaller images are returned as is.
func fitWithin(src image.Image, limit int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return src
	}
	scale := float64(limit) / float64(max(w, h))
	dst := image.NewRGBA(image.Rect(0, 0, max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

// flatten composites img over white; JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// contentHash identifies an upload per uploader, so two users posting the
// same picture get separate records.
func contentHash(uploaderID uint, master []byte) string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatUint(uint64(uploaderID), 10) + ":"))
	h.Write(master)
	return hex.EncodeToString(h.Sum(nil))
}

// isContentHash accepts lowercase hex SHA-256 digests only, which keeps
// object keys built from it inside their prefix.
func isContentHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	return strings.Trim(s, "0123456789abcdef") == ""
}

func objectKey(hash, format string) string {
	return path.Join(hash[:2], hash, "master."+format)
}
