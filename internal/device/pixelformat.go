package device

import "github.com/smazurov/camnode/internal/types"

// fourCCFormats maps V4L2 four character codes to PFNC pixel formats.
var fourCCFormats = map[string]types.PixelFormat{
	"GREY": types.PixelFormatMono8,
	"Y16 ": types.PixelFormatMono16,
	"RGB3": types.PixelFormatRGB8,
	"BGR3": types.PixelFormatBGR8,
	"YUYV": types.PixelFormatYUV422_8,
	"UYVY": types.PixelFormatYUV422_8_UYVY,
	"RGGB": types.PixelFormatBayerRG8,
	"BA81": types.PixelFormatBayerBG8,
	"GRBG": types.PixelFormatBayerGR8,
	"GBRG": types.PixelFormatBayerGB8,
}

// PixelFormatFromFourCC returns the PFNC format for a V4L2 code.
func PixelFormatFromFourCC(code string) (types.PixelFormat, bool) {
	pf, ok := fourCCFormats[code]
	return pf, ok
}

// FourCCFromPixelFormat returns the V4L2 code for a PFNC format.
func FourCCFromPixelFormat(pf types.PixelFormat) (string, bool) {
	for code, f := range fourCCFormats {
		if f == pf {
			return code, true
		}
	}
	return "", false
}
