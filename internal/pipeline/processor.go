package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Reaxt/imgbot/internal/options"
)

const DefaultMaxContentLength int64 = 10_000_000

var (
	ErrSourceTooLarge    = errors.New("source image too large")
	ErrUnsupportedScheme = errors.New("unsupported source url scheme")
)

type Request struct {
	CommandID string
	Source    string
	Options   *options.Options
}

type Result struct {
	Format      string
	Width       int
	Height      int
	Bytes       int
	SourceBytes int
}

type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

type Emitter interface {
	Emit(ctx context.Context, req Request, data []byte, format string, width, height int) error
}

type Processor struct {
	fetcher     Fetcher
	transformer Transformer
	emitter     Emitter
}

func NewProcessor(fetcher Fetcher, transformer Transformer, emitter Emitter) *Processor {
	return &Processor{
		fetcher:     fetcher,
		transformer: transformer,
		emitter:     emitter,
	}
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.CommandID) == "" {
		return Result{}, errors.New("command id is required")
	}
	if req.Options == nil {
		return Result{}, errors.New("options record is required")
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	data, format, width, height, err := p.transformer.Transform(ctx, sourceBytes, req.Options)
	if err != nil {
		return Result{}, fmt.Errorf("transform stage: %w", err)
	}

	if err := p.emitter.Emit(ctx, req, data, format, width, height); err != nil {
		return Result{}, fmt.Errorf("emit stage: %w", err)
	}

	return Result{
		Format:      format,
		Width:       width,
		Height:      height,
		Bytes:       len(data),
		SourceBytes: len(sourceBytes),
	}, nil
}

type HTTPFetcher struct {
	Client           *http.Client
	MaxContentLength int64
}

func (f HTTPFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return nil, errors.New("source url is required")
	}

	parsed, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	maxBytes := f.MaxContentLength
	if maxBytes <= 0 {
		maxBytes = DefaultMaxContentLength
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build source request: %w", err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("source fetch http %d", resp.StatusCode)
	}
	if resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrSourceTooLarge, resp.ContentLength, maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read source body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: >%d bytes", ErrSourceTooLarge, maxBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("source image is empty")
	}
	return data, nil
}
