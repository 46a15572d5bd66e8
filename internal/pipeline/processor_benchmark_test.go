package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Reaxt/imgbot/internal/options"
)

type discardEmitter struct{}

func (discardEmitter) Emit(_ context.Context, _ Request, _ []byte, _ string, _, _ int) error {
	return nil
}

func BenchmarkProcessorResize(b *testing.B) {
	source := benchmarkPNG(b, 1920, 1080)
	transformer, err := NewTransformer()
	if err != nil {
		b.Fatalf("new transformer: %v", err)
	}

	quality := 82
	opts := &options.Options{Width: 640, Format: "jpeg", Quality: &quality}
	processor := NewProcessor(staticFetcher{data: source}, transformer, discardEmitter{})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := Request{CommandID: fmt.Sprintf("bench-resize-%d", i), Options: opts}
		if _, err := processor.Process(context.Background(), req); err != nil {
			b.Fatalf("process: %v", err)
		}
	}
}

func BenchmarkProcessorThreshold(b *testing.B) {
	source := benchmarkPNG(b, 1920, 1080)
	transformer, err := NewTransformer()
	if err != nil {
		b.Fatalf("new transformer: %v", err)
	}

	threshold := 128
	opts := &options.Options{Threshold: &threshold}
	processor := NewProcessor(staticFetcher{data: source}, transformer, discardEmitter{})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := Request{CommandID: fmt.Sprintf("bench-threshold-%d", i), Options: opts}
		if _, err := processor.Process(context.Background(), req); err != nil {
			b.Fatalf("process: %v", err)
		}
	}
}

func benchmarkPNG(b *testing.B, w, h int) []byte {
	b.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		b.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}
