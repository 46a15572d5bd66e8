package pipeline

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/Reaxt/imgbot/internal/options"
)

const maxOutputPixels = 64 << 20

type Transformer interface {
	Transform(ctx context.Context, input []byte, opts *options.Options) (data []byte, format string, width, height int, err error)
}

func normalizeOutputFormat(format string) string {
	switch format {
	case "jpg":
		return "jpeg"
	case "jpeg", "png", "webp", "gif":
		return format
	default:
		return "png"
	}
}

func outputFormat(requested, source string) string {
	if strings.TrimSpace(requested) != "" {
		return normalizeOutputFormat(strings.ToLower(strings.TrimSpace(requested)))
	}
	return normalizeOutputFormat(strings.ToLower(strings.TrimSpace(source)))
}

func cropRegion(box options.Box, imageWidth, imageHeight int) (left, top, width, height int, err error) {
	width = imageWidth - box.Left - box.Right
	height = imageHeight - box.Top - box.Bottom
	if width <= 0 || height <= 0 {
		return 0, 0, 0, 0, fmt.Errorf("crop box leaves no image: %dx%d region from %dx%d source", width, height, imageWidth, imageHeight)
	}
	return box.Left, box.Top, width, height, nil
}

func resizeTarget(opts *options.Options, width, height int) (int, int) {
	switch {
	case opts.Width > 0 && opts.Height > 0:
		return opts.Width, opts.Height
	case opts.Width > 0:
		scaled := int(math.Round(float64(height) * float64(opts.Width) / float64(width)))
		return opts.Width, max(1, scaled)
	case opts.Height > 0:
		scaled := int(math.Round(float64(width) * float64(opts.Height) / float64(height)))
		return max(1, scaled), opts.Height
	default:
		return width, height
	}
}

func checkOutputSize(width, height int) error {
	if int64(width)*int64(height) > maxOutputPixels {
		return fmt.Errorf("output size %dx%d exceeds the pixel limit", width, height)
	}
	return nil
}

func backgroundColor(opts *options.Options) color.NRGBA {
	if opts.Background != nil {
		return *opts.Background
	}
	return color.NRGBA{A: 0xff}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
