package fingerprint

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/kozaktomas/face-auth/internal/constants"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// prepareImage decodes the photo and, when either side exceeds maxSize,
// returns a downscaled JPEG re-encoding. Smaller photos are returned unchanged.
// Uniform scaling keeps the area ordering of face boxes intact.
// Photos declaring more than maxPixels pixels are rejected before decoding.
func prepareImage(data []byte, maxSize, maxPixels int) ([]byte, error) {
	header, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	if header.Width <= 0 || header.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	if header.Width > maxPixels/header.Height {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidImage, header.Width, header.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}

	// Check if resizing is needed.
	if width <= maxSize && height <= maxSize {
		return data, nil
	}

	// Calculate new dimensions.
	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	// Create resized image.
	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	// Encode as JPEG.
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: constants.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}

	return buf.Bytes(), nil
}
