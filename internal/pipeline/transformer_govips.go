//go:build govips && cgo

package pipeline

import (
	"context"
	"fmt"
	"image/color"

	"github.com/Reaxt/imgbot/internal/options"
	"github.com/davidbyttow/govips/v2/vips"
)

type govipsTransformer struct{}

func (t govipsTransformer) Transform(ctx context.Context, input []byte, opts *options.Options) ([]byte, string, int, int, error) {
	select {
	case <-ctx.Done():
		return nil, "", 0, 0, ctx.Err()
	default:
	}

	img, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("decode source image: %w", err)
	}
	defer img.Close()

	if err := applyGovipsPipeline(img, opts); err != nil {
		return nil, "", 0, 0, err
	}

	format := outputFormat(opts.Format, sourceFormat(input))
	data, err := exportGovipsImage(img, format, opts.Quality)
	if err != nil {
		return nil, "", 0, 0, err
	}

	return data, format, img.Width(), img.Height(), nil
}

func applyGovipsPipeline(img *vips.ImageRef, opts *options.Options) error {
	bg := backgroundColor(opts)

	if opts.RemoveAlpha && img.HasAlpha() {
		if err := img.Flatten(&vips.Color{R: bg.R, G: bg.G, B: bg.B}); err != nil {
			return fmt.Errorf("remove alpha: %w", err)
		}
	}
	if opts.EnsureAlpha && !img.HasAlpha() {
		if err := img.AddAlpha(); err != nil {
			return fmt.Errorf("ensure alpha: %w", err)
		}
	}
	if opts.Crop != nil {
		left, top, width, height, err := cropRegion(*opts.Crop, img.Width(), img.Height())
		if err != nil {
			return err
		}
		if err := img.ExtractArea(left, top, width, height); err != nil {
			return fmt.Errorf("crop image: %w", err)
		}
	}
	if opts.Flip != "" {
		direction := vips.DirectionHorizontal
		if opts.Flip == "y" {
			direction = vips.DirectionVertical
		}
		if err := img.Flip(direction); err != nil {
			return fmt.Errorf("flip image: %w", err)
		}
	}
	if opts.Sharpen {
		if err := img.Sharpen(0.5, 2, 3); err != nil {
			return fmt.Errorf("sharpen image: %w", err)
		}
	}
	if opts.Threshold != nil {
		if err := thresholdGovips(img, *opts.Threshold); err != nil {
			return fmt.Errorf("threshold image: %w", err)
		}
	}
	if opts.Negate {
		if err := negateGovips(img); err != nil {
			return fmt.Errorf("negate image: %w", err)
		}
	}
	if opts.Blur {
		if err := img.GaussianBlur(1.5); err != nil {
			return fmt.Errorf("blur image: %w", err)
		}
	}
	switch {
	case opts.Tint != nil:
		if err := tintGovips(img, *opts.Tint); err != nil {
			return fmt.Errorf("tint image: %w", err)
		}
	case opts.Greyscale:
		if err := img.ToColorSpace(vips.InterpretationBW); err != nil {
			return fmt.Errorf("greyscale image: %w", err)
		}
	}
	if opts.Width > 0 || opts.Height > 0 {
		width, height := resizeTarget(opts, img.Width(), img.Height())
		if err := checkOutputSize(width, height); err != nil {
			return err
		}
		hscale := float64(width) / float64(img.Width())
		vscale := float64(height) / float64(img.Height())
		if err := img.ResizeWithVScale(hscale, vscale, vips.KernelLanczos3); err != nil {
			return fmt.Errorf("resize image: %w", err)
		}
	}
	if opts.Rotation != 0 {
		if err := rotateGovips(img, opts.Rotation, bg); err != nil {
			return fmt.Errorf("rotate image: %w", err)
		}
	}
	if opts.Extend != nil {
		box := *opts.Extend
		width := img.Width() + box.Left + box.Right
		height := img.Height() + box.Top + box.Bottom
		if err := checkOutputSize(width, height); err != nil {
			return err
		}
		if err := img.EmbedBackground(box.Left, box.Top, width, height, &vips.Color{R: bg.R, G: bg.G, B: bg.B}); err != nil {
			return fmt.Errorf("extend image: %w", err)
		}
	}
	return nil
}

func withColorBands(img *vips.ImageRef, fn func(*vips.ImageRef) error) error {
	if !img.HasAlpha() {
		return fn(img)
	}

	bands := img.Bands()
	alpha, err := img.Copy()
	if err != nil {
		return err
	}
	defer alpha.Close()
	if err := alpha.ExtractBand(bands-1, 1); err != nil {
		return err
	}

	if err := img.ExtractBand(0, bands-1); err != nil {
		return err
	}
	if err := fn(img); err != nil {
		return err
	}
	return img.BandJoin(alpha)
}

func thresholdGovips(img *vips.ImageRef, threshold int) error {
	return withColorBands(img, func(img *vips.ImageRef) error {
		if err := img.ToColorSpace(vips.InterpretationBW); err != nil {
			return err
		}
		if err := img.Linear1(255, 255-255*float64(threshold)); err != nil {
			return err
		}
		return img.Cast(vips.BandFormatUchar)
	})
}

func negateGovips(img *vips.ImageRef) error {
	return withColorBands(img, func(img *vips.ImageRef) error {
		return img.Invert()
	})
}

func tintGovips(img *vips.ImageRef, tint color.NRGBA) error {
	return withColorBands(img, func(img *vips.ImageRef) error {
		if err := img.ToColorSpace(vips.InterpretationBW); err != nil {
			return err
		}
		if err := img.ToColorSpace(vips.InterpretationSRGB); err != nil {
			return err
		}
		scale := []float64{
			float64(tint.R) / 255,
			float64(tint.G) / 255,
			float64(tint.B) / 255,
		}
		if err := img.Linear(scale, []float64{0, 0, 0}); err != nil {
			return err
		}
		return img.Cast(vips.BandFormatUchar)
	})
}

func rotateGovips(img *vips.ImageRef, degrees int, bg color.NRGBA) error {
	turns := ((degrees % 360) + 360) % 360
	switch turns {
	case 0:
		return nil
	case 90:
		return img.Rotate(vips.Angle90)
	case 180:
		return img.Rotate(vips.Angle180)
	case 270:
		return img.Rotate(vips.Angle270)
	}

	background := &vips.ColorRGBA{R: bg.R, G: bg.G, B: bg.B, A: bg.A}
	return img.Similarity(1.0, float64(degrees), background, 0, 0, 0, 0)
}

func sourceFormat(input []byte) string {
	switch vips.DetermineImageType(input) {
	case vips.ImageTypeJPEG:
		return "jpeg"
	case vips.ImageTypeWEBP:
		return "webp"
	case vips.ImageTypeGIF:
		return "gif"
	default:
		return "png"
	}
}

func exportGovipsImage(img *vips.ImageRef, format string, quality *int) ([]byte, error) {
	switch format {
	case "jpeg":
		params := vips.NewJpegExportParams()
		if quality != nil {
			params.Quality = max(1, *quality)
		}
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case "png":
		params := vips.NewPngExportParams()
		data, _, err := img.ExportPng(params)
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	case "gif":
		params := vips.NewGifExportParams()
		data, _, err := img.ExportGIF(params)
		if err != nil {
			return nil, fmt.Errorf("encode gif: %w", err)
		}
		return data, nil
	case "webp":
		params := vips.NewWebpExportParams()
		if quality != nil {
			params.Quality = max(1, *quality)
		}
		data, _, err := img.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
