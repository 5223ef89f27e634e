package types

import (
	"fmt"
	"sort"
	"strings"
)

// PixelFormat is a GenICam PFNC pixel format code. Bits 16-23 hold the
// number of bits per pixel.
type PixelFormat uint32

// Supported pixel formats.
const (
	PixelFormatMono8         PixelFormat = 0x01080001
	PixelFormatMono10        PixelFormat = 0x01100003
	PixelFormatMono12        PixelFormat = 0x01100005
	PixelFormatMono12Packed  PixelFormat = 0x010C0006
	PixelFormatMono16        PixelFormat = 0x01100007
	PixelFormatBayerGR8      PixelFormat = 0x01080008
	PixelFormatBayerRG8      PixelFormat = 0x01080009
	PixelFormatBayerGB8      PixelFormat = 0x0108000A
	PixelFormatBayerBG8      PixelFormat = 0x0108000B
	PixelFormatRGB8          PixelFormat = 0x02180014
	PixelFormatBGR8          PixelFormat = 0x02180015
	PixelFormatYUV422_8      PixelFormat = 0x02100032
	PixelFormatYUV422_8_UYVY PixelFormat = 0x0210001F
)

var pixelFormatNames = map[PixelFormat]string{
	PixelFormatMono8:         "Mono8",
	PixelFormatMono10:        "Mono10",
	PixelFormatMono12:        "Mono12",
	PixelFormatMono12Packed:  "Mono12Packed",
	PixelFormatMono16:        "Mono16",
	PixelFormatBayerGR8:      "BayerGR8",
	PixelFormatBayerRG8:      "BayerRG8",
	PixelFormatBayerGB8:      "BayerGB8",
	PixelFormatBayerBG8:      "BayerBG8",
	PixelFormatRGB8:          "RGB8",
	PixelFormatBGR8:          "BGR8",
	PixelFormatYUV422_8:      "YUV422_8",
	PixelFormatYUV422_8_UYVY: "YUV422_8_UYVY",
}

// String returns the PFNC name, or the hex code for unknown formats.
func (p PixelFormat) String() string {
	if name, ok := pixelFormatNames[p]; ok {
		return name
	}
	return fmt.Sprintf("0x%08X", uint32(p))
}

// Known reports whether p is one of the supported formats.
func (p PixelFormat) Known() bool {
	_, ok := pixelFormatNames[p]
	return ok
}

// BitsPerPixel extracts the pixel size from the format code.
func (p PixelFormat) BitsPerPixel() int {
	return int((uint32(p) >> 16) & 0xFF)
}

// PayloadSize returns the byte size of a width x height frame.
func (p PixelFormat) PayloadSize(width, height int) int {
	return width * height * p.BitsPerPixel() / 8
}

// IsBayer reports whether p is a raw Bayer mosaic.
func (p PixelFormat) IsBayer() bool {
	switch p {
	case PixelFormatBayerGR8, PixelFormatBayerRG8, PixelFormatBayerGB8, PixelFormatBayerBG8:
		return true
	}
	return false
}

// ParsePixelFormat looks a format up by name, case-insensitively.
// A "0x" prefixed code is accepted for formats without a name.
func ParsePixelFormat(s string) (PixelFormat, error) {
	for p, name := range pixelFormatNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	var code uint32
	if _, err := fmt.Sscanf(s, "0x%x", &code); err == nil && code != 0 {
		return PixelFormat(code), nil
	}
	return 0, fmt.Errorf("unknown pixel format %q", s)
}

// PixelFormats returns every supported format sorted by name.
func PixelFormats() []PixelFormat {
	out := make([]PixelFormat, 0, len(pixelFormatNames))
	for p := range pixelFormatNames {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (p PixelFormat) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *PixelFormat) UnmarshalText(text []byte) error {
	parsed, err := ParsePixelFormat(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
