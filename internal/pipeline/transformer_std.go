package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/Reaxt/imgbot/internal/options"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	_ "golang.org/x/image/webp"
)

type stdlibTransformer struct{}

func (t stdlibTransformer) Transform(ctx context.Context, input []byte, opts *options.Options) ([]byte, string, int, int, error) {
	select {
	case <-ctx.Done():
		return nil, "", 0, 0, ctx.Err()
	default:
	}

	src, srcFormat, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("decode source image: %w", err)
	}

	img := toNRGBA(src)
	if img.Bounds().Dx() < 1 || img.Bounds().Dy() < 1 {
		return nil, "", 0, 0, errors.New("source image has invalid dimensions")
	}

	if opts.RemoveAlpha {
		img = removeAlpha(img, backgroundColor(opts))
	}
	// The NRGBA working space always carries an alpha band, which is all
	// ensure-alpha asks for.

	if opts.Crop != nil {
		img, err = cropImage(img, *opts.Crop)
		if err != nil {
			return nil, "", 0, 0, err
		}
	}
	if opts.Flip != "" {
		img = flipImage(img, opts.Flip)
	}
	if opts.Sharpen {
		img = sharpenImage(img)
	}
	if opts.Threshold != nil {
		img = thresholdImage(img, *opts.Threshold)
	}
	if opts.Negate {
		img = negateImage(img)
	}
	if opts.Blur {
		img = blurImage(img)
	}
	switch {
	case opts.Tint != nil:
		img = tintImage(img, *opts.Tint)
	case opts.Greyscale:
		img = greyscaleImage(img)
	}
	if opts.Width > 0 || opts.Height > 0 {
		img, err = scaleImage(img, opts)
		if err != nil {
			return nil, "", 0, 0, err
		}
	}
	if opts.Rotation != 0 {
		img, err = rotateImage(img, opts.Rotation, backgroundColor(opts))
		if err != nil {
			return nil, "", 0, 0, err
		}
	}
	if opts.Extend != nil {
		img, err = extendImage(img, *opts.Extend, backgroundColor(opts))
		if err != nil {
			return nil, "", 0, 0, err
		}
	}

	format := outputFormat(opts.Format, srcFormat)
	output, err := encodeImage(img, format, opts.Quality)
	if err != nil {
		return nil, "", 0, 0, err
	}

	bounds := img.Bounds()
	return output, format, bounds.Dx(), bounds.Dy(), nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	bounds := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	return dst
}

func removeAlpha(img *image.NRGBA, bg color.NRGBA) *image.NRGBA {
	dst := fillImage(img.Bounds().Dx(), img.Bounds().Dy(), bg)
	draw.Draw(dst, dst.Bounds(), img, image.Point{}, draw.Over)
	return dst
}

func cropImage(img *image.NRGBA, box options.Box) (*image.NRGBA, error) {
	bounds := img.Bounds()
	left, top, width, height, err := cropRegion(box, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), img, image.Pt(left, top), draw.Src)
	return dst, nil
}

func flipImage(img *image.NRGBA, axis string) *image.NRGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if axis == "x" {
				copyPixel(dst, img, x, y, w-1-x, y)
			} else {
				copyPixel(dst, img, x, y, x, h-1-y)
			}
		}
	}
	return dst
}

func sharpenImage(img *image.NRGBA) *image.NRGBA {
	return convolve3x3(img, [9]int{0, -1, 0, -1, 5, -1, 0, -1, 0}, 1, false)
}

func blurImage(img *image.NRGBA) *image.NRGBA {
	return convolve3x3(img, [9]int{1, 1, 1, 1, 1, 1, 1, 1, 1}, 9, true)
}

func convolve3x3(img *image.NRGBA, kernel [9]int, divisor int, includeAlpha bool) *image.NRGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	channels := 3
	if includeAlpha {
		channels = 4
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			di := dst.PixOffset(x, y)
			for c := 0; c < channels; c++ {
				sum := 0
				k := 0
				for ky := -1; ky <= 1; ky++ {
					for kx := -1; kx <= 1; kx++ {
						sx := clamp(x+kx, 0, w-1)
						sy := clamp(y+ky, 0, h-1)
						sum += int(img.Pix[img.PixOffset(sx, sy)+c]) * kernel[k]
						k++
					}
				}
				dst.Pix[di+c] = clampByte(sum / divisor)
			}
			if !includeAlpha {
				dst.Pix[di+3] = img.Pix[img.PixOffset(x, y)+3]
			}
		}
	}
	return dst
}

func thresholdImage(img *image.NRGBA, threshold int) *image.NRGBA {
	dst := image.NewNRGBA(img.Bounds())
	copy(dst.Pix, img.Pix)
	for i := 0; i < len(dst.Pix); i += 4 {
		v := uint8(0)
		if luminosity(dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2]) >= threshold {
			v = 255
		}
		dst.Pix[i] = v
		dst.Pix[i+1] = v
		dst.Pix[i+2] = v
	}
	return dst
}

func negateImage(img *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(img.Bounds())
	copy(dst.Pix, img.Pix)
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 255 - dst.Pix[i]
		dst.Pix[i+1] = 255 - dst.Pix[i+1]
		dst.Pix[i+2] = 255 - dst.Pix[i+2]
	}
	return dst
}

func tintImage(img *image.NRGBA, tint color.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(img.Bounds())
	copy(dst.Pix, img.Pix)
	for i := 0; i < len(dst.Pix); i += 4 {
		lum := luminosity(dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2])
		dst.Pix[i] = uint8(lum * int(tint.R) / 255)
		dst.Pix[i+1] = uint8(lum * int(tint.G) / 255)
		dst.Pix[i+2] = uint8(lum * int(tint.B) / 255)
	}
	return dst
}

func greyscaleImage(img *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(img.Bounds())
	copy(dst.Pix, img.Pix)
	for i := 0; i < len(dst.Pix); i += 4 {
		lum := uint8(luminosity(dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2]))
		dst.Pix[i] = lum
		dst.Pix[i+1] = lum
		dst.Pix[i+2] = lum
	}
	return dst
}

func luminosity(r, g, b uint8) int {
	return (299*int(r) + 587*int(g) + 114*int(b)) / 1000
}

func scaleImage(img *image.NRGBA, opts *options.Options) (*image.NRGBA, error) {
	bounds := img.Bounds()
	width, height := resizeTarget(opts, bounds.Dx(), bounds.Dy())
	if err := checkOutputSize(width, height); err != nil {
		return nil, err
	}
	if width == bounds.Dx() && height == bounds.Dy() {
		return img, nil
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst, nil
}

func rotateImage(img *image.NRGBA, degrees int, bg color.NRGBA) (*image.NRGBA, error) {
	turns := ((degrees % 360) + 360) % 360
	if turns%90 == 0 {
		return rotateQuarter(img, turns), nil
	}
	return rotateArbitrary(img, degrees, bg)
}

func rotateQuarter(img *image.NRGBA, turns int) *image.NRGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	switch turns {
	case 90:
		dst := image.NewNRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				copyPixel(dst, img, h-1-y, x, x, y)
			}
		}
		return dst
	case 180:
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				copyPixel(dst, img, w-1-x, h-1-y, x, y)
			}
		}
		return dst
	case 270:
		dst := image.NewNRGBA(image.Rect(0, 0, h, w))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				copyPixel(dst, img, y, w-1-x, x, y)
			}
		}
		return dst
	default:
		return img
	}
}

func rotateArbitrary(img *image.NRGBA, degrees int, bg color.NRGBA) (*image.NRGBA, error) {
	bounds := img.Bounds()
	srcW, srcH := float64(bounds.Dx()), float64(bounds.Dy())
	sin, cos := math.Sincos(float64(degrees) * math.Pi / 180)

	dstW := int(math.Ceil(math.Abs(srcW*cos) + math.Abs(srcH*sin)))
	dstH := int(math.Ceil(math.Abs(srcW*sin) + math.Abs(srcH*cos)))
	if dstW < 1 {
		dstW = 1
	}
	if dstH < 1 {
		dstH = 1
	}
	if err := checkOutputSize(dstW, dstH); err != nil {
		return nil, err
	}

	srcCx, srcCy := srcW/2, srcH/2
	dstCx, dstCy := float64(dstW)/2, float64(dstH)/2
	matrix := f64.Aff3{
		cos, -sin, dstCx - cos*srcCx + sin*srcCy,
		sin, cos, dstCy - sin*srcCx - cos*srcCy,
	}

	dst := fillImage(dstW, dstH, bg)
	draw.BiLinear.Transform(dst, matrix, img, bounds, draw.Over, nil)
	return dst, nil
}

func extendImage(img *image.NRGBA, box options.Box, bg color.NRGBA) (*image.NRGBA, error) {
	bounds := img.Bounds()
	width := bounds.Dx() + box.Left + box.Right
	height := bounds.Dy() + box.Top + box.Bottom
	if err := checkOutputSize(width, height); err != nil {
		return nil, err
	}

	dst := fillImage(width, height, bg)
	region := image.Rect(box.Left, box.Top, box.Left+bounds.Dx(), box.Top+bounds.Dy())
	draw.Draw(dst, region, img, image.Point{}, draw.Src)
	return dst, nil
}

func fillImage(width, height int, bg color.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	return dst
}

func copyPixel(dst, src *image.NRGBA, dstX, dstY, srcX, srcY int) {
	di := dst.PixOffset(dstX, dstY)
	si := src.PixOffset(srcX, srcY)
	copy(dst.Pix[di:di+4], src.Pix[si:si+4])
}

func encodeImage(img image.Image, format string, quality *int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case "jpeg":
		jpegOpts := &jpeg.Options{Quality: jpeg.DefaultQuality}
		if quality != nil {
			jpegOpts.Quality = *quality
		}
		if err := jpeg.Encode(&buf, img, jpegOpts); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case "png":
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case "gif":
		if err := gif.Encode(&buf, img, &gif.Options{NumColors: 256}); err != nil {
			return nil, fmt.Errorf("encode gif: %w", err)
		}
	case "webp":
		return nil, errors.New("webp export requires govips build tag")
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	return buf.Bytes(), nil
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampByte(v int) uint8 {
	return uint8(clamp(v, 0, 255))
}
