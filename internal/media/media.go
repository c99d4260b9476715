// Package media keeps reference images attached to orders small enough to
// store inline.
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
)

// MaxSide is the longest edge kept for inline reference images.
const MaxSide = 1280

var ErrInvalidImage = errors.New("invalid reference image")

// Shrink decodes a base64 data URL, downsizes it so neither edge exceeds
// maxSide and returns it re-encoded as a JPEG data URL. Anything that is not
// a data URL (a remote link) is returned as-is.
func Shrink(value string, maxSide int) (string, error) {
	if !strings.HasPrefix(value, "data:") {
		return value, nil
	}
	header, payload, ok := strings.Cut(value, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return "", fmt.Errorf("%w: not a base64 image data url", ErrInvalidImage)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if maxSide <= 0 {
		maxSide = MaxSide
	}
	bounds := img.Bounds()
	if bounds.Dx() > maxSide || bounds.Dy() > maxSide {
		img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ShrinkAll applies Shrink to every image, dropping blanks.
func ShrinkAll(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	for i, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		shrunk, err := Shrink(v, MaxSide)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		out = append(out, shrunk)
	}
	return out, nil
}
