// Package capture turns acquired frames into images.
package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/smazurov/camnode/internal/stream"
	"github.com/smazurov/camnode/internal/types"
)

var (
	ErrUnsupportedFormat = errors.New("pixel format cannot be converted to an image")
	ErrSizeMismatch      = errors.New("buffer size does not match region and pixel format")
	ErrNotFilled         = errors.New("buffer does not hold a frame")
)

// Image wraps a filled buffer's data in an image.Image. Raw Bayer mosaics are
// returned as grayscale.
func Image(b *stream.Buffer) (image.Image, error) {
	if b == nil || b.Status != stream.StatusFilled {
		return nil, ErrNotFilled
	}
	w, h := b.Region.Width, b.Region.Height
	pf := b.PixelFormat
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: empty region", ErrSizeMismatch)
	}
	if want := pf.PayloadSize(w, h); len(b.Data) < want {
		return nil, fmt.Errorf("%w: have %d bytes, %s %dx%d needs %d", ErrSizeMismatch, len(b.Data), pf, w, h, want)
	}
	rect := image.Rect(0, 0, w, h)

	switch {
	case pf == types.PixelFormatMono8 || pf.IsBayer():
		img := image.NewGray(rect)
		copy(img.Pix, b.Data)
		return img, nil

	case pf == types.PixelFormatMono16, pf == types.PixelFormatMono10, pf == types.PixelFormatMono12:
		shift := map[types.PixelFormat]uint{
			types.PixelFormatMono10: 6,
			types.PixelFormatMono12: 4,
		}[pf]
		img := image.NewGray16(rect)
		for i := 0; i < w*h; i++ {
			// Frames are little-endian, image.Gray16 is big-endian.
			v := binary.LittleEndian.Uint16(b.Data[2*i:]) << shift
			binary.BigEndian.PutUint16(img.Pix[2*i:], v)
		}
		return img, nil

	case pf == types.PixelFormatRGB8, pf == types.PixelFormatBGR8:
		img := image.NewRGBA(rect)
		for i := 0; i < w*h; i++ {
			r, g, bl := b.Data[3*i], b.Data[3*i+1], b.Data[3*i+2]
			if pf == types.PixelFormatBGR8 {
				r, bl = bl, r
			}
			img.Pix[4*i], img.Pix[4*i+1], img.Pix[4*i+2], img.Pix[4*i+3] = r, g, bl, 0xFF
		}
		return img, nil

	case pf == types.PixelFormatYUV422_8, pf == types.PixelFormatYUV422_8_UYVY:
		if w%2 != 0 {
			return nil, fmt.Errorf("%w: %s needs an even width", ErrSizeMismatch, pf)
		}
		img := image.NewYCbCr(rect, image.YCbCrSubsampleRatio422)
		// Byte offsets of Y0, U, Y1, V within each 4-byte pixel pair.
		y0, u, y1, v := 0, 1, 2, 3
		if pf == types.PixelFormatYUV422_8_UYVY {
			y0, u, y1, v = 1, 0, 3, 2
		}
		for row := 0; row < h; row++ {
			for pair := 0; pair < w/2; pair++ {
				src := b.Data[(row*w+2*pair)*2:]
				img.Y[row*img.YStride+2*pair] = src[y0]
				img.Y[row*img.YStride+2*pair+1] = src[y1]
				img.Cb[row*img.CStride+pair] = src[u]
				img.Cr[row*img.CStride+pair] = src[v]
			}
		}
		return img, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, pf)
}

// EncodePNG encodes a filled buffer as PNG.
func EncodePNG(b *stream.Buffer) ([]byte, error) {
	img, err := Image(b)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}

// SaveFrame writes a filled buffer as PNG to outputPath, creating parent
// directories as needed.
func SaveFrame(b *stream.Buffer, outputPath string) error {
	data, err := EncodePNG(b)
	if err != nil {
		return err
	}

	outputDir := filepath.Dir(outputPath)
	if outputDir != "." {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
		}
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	return nil
}

// FrameFileName names a saved frame after its device and frame id.
func FrameFileName(deviceID string, frameID uint64) string {
	return fmt.Sprintf("%s-%06d.png", deviceID, frameID)
}
