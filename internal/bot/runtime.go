package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/Reaxt/imgbot/internal/config"
	"github.com/Reaxt/imgbot/internal/id"
	"github.com/Reaxt/imgbot/internal/options"
	"github.com/Reaxt/imgbot/internal/pipeline"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	triggerWord = "imgbot"

	replyMissingImage   = "exactly one image must be attached"
	replyGenericFailure = "invalid image or options"

	uploadAction         = "upload_photo"
	uploadActionInterval = 4 * time.Second
)

const (
	outcomeSucceeded  = "succeeded"
	outcomeFailed     = "failed"
	outcomeHelp       = "help"
	outcomeParseError = "parse_error"
	outcomeNoImage    = "no_image"
)

type Runtime struct {
	logger           *log.Logger
	api              *apiClient
	transformer      pipeline.Transformer
	fetchClient      *http.Client
	maxContentLength int64
	pollTimeout      time.Duration
	sem              chan struct{}
	metrics          *metrics
	tracer           trace.Tracer
}

func NewRuntime(logger *log.Logger, botCfg config.BotConfig, fetchCfg config.FetchConfig) (*Runtime, error) {
	if strings.TrimSpace(botCfg.Token) == "" {
		return nil, errors.New("bot token is required")
	}

	transformer, err := pipeline.NewTransformer()
	if err != nil {
		return nil, fmt.Errorf("build transformer: %w", err)
	}

	maxContentLength := fetchCfg.MaxContentLength
	if maxContentLength <= 0 {
		maxContentLength = pipeline.DefaultMaxContentLength
	}
	requestTimeout := botCfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	return &Runtime{
		logger:           logger,
		api:              newAPIClient(nil, botCfg.APIBaseURL, botCfg.Token),
		transformer:      transformer,
		fetchClient:      &http.Client{Timeout: requestTimeout},
		maxContentLength: maxContentLength,
		pollTimeout:      botCfg.PollTimeout,
		sem:              make(chan struct{}, max(1, botCfg.MaxConcurrency)),
		metrics:          newMetrics(),
		tracer:           otel.Tracer("imgbot/bot"),
	}, nil
}

func (rt *Runtime) MetricsHandler() http.Handler {
	return rt.metrics.Handler()
}

func (rt *Runtime) Run(ctx context.Context) error {
	me, err := rt.waitForIdentity(ctx)
	if err != nil {
		return err
	}
	rt.logger.Printf("bot ready username=@%s id=%d", me.Username, me.ID)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		updates, next, err := rt.api.getUpdates(ctx, offset, rt.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !isPollTimeoutError(err) {
				rt.logger.Printf("poll failed err=%v", err)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(time.Second):
				}
			}
			continue
		}
		offset = next

		for _, u := range updates {
			if u.Message == nil {
				continue
			}
			go rt.handleMessage(ctx, u.Message)
		}
	}
}

func (rt *Runtime) waitForIdentity(ctx context.Context) (*user, error) {
	for {
		me, err := rt.api.getMe(ctx)
		if err == nil {
			return me, nil
		}
		rt.logger.Printf("getMe failed err=%v", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (rt *Runtime) handleMessage(ctx context.Context, msg *message) {
	if msg.Chat == nil {
		return
	}
	if msg.From != nil && msg.From.IsBot {
		return
	}

	args, ok := commandArgs(messageText(msg))
	if !ok {
		return
	}
	rt.handleCommand(ctx, msg, args)
}

func (rt *Runtime) handleCommand(ctx context.Context, msg *message, args string) {
	commandID := id.New()
	startedAt := time.Now()
	outcome := outcomeFailed

	ctx, span := rt.tracer.Start(ctx, "bot.handle_command", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("command.id", commandID),
		attribute.Int64("chat.id", msg.Chat.ID),
		attribute.Int64("message.id", msg.MessageID),
	)
	defer span.End()
	defer func() {
		rt.metrics.commandDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
		rt.metrics.commandsTotal.WithLabelValues(outcome).Inc()
	}()

	rt.sem <- struct{}{}
	rt.metrics.activeCommands.Inc()
	defer func() {
		<-rt.sem
		rt.metrics.activeCommands.Dec()
	}()

	tokens := options.Tokenize(args)
	if options.IsHelpRequest(tokens) {
		rt.reply(ctx, msg, options.Usage())
		outcome = outcomeHelp
		span.SetStatus(codes.Ok, "help")
		return
	}

	opts, parseErr := options.Parse(tokens)
	if parseErr != nil {
		rt.reply(ctx, msg, parseErr.Message())
		outcome = outcomeParseError
		span.SetStatus(codes.Ok, "parse error reported")
		return
	}

	fetcher, ok := rt.sourceFetcher(opts, msg)
	if !ok {
		rt.reply(ctx, msg, replyMissingImage)
		outcome = outcomeNoImage
		span.SetStatus(codes.Ok, "no image source")
		return
	}

	stopUploadTicker := rt.startUploadTicker(ctx, msg.Chat.ID)
	defer stopUploadTicker()

	rt.logger.Printf("Working... command_id=%s chat_id=%d args=%q", commandID, msg.Chat.ID, args)

	emitter := &documentEmitter{
		api:     rt.api,
		chatID:  msg.Chat.ID,
		replyTo: msg.MessageID,
		caption: effectiveCaption(opts),
	}
	processor := pipeline.NewProcessor(fetcher, rt.transformer, emitter)

	result, err := processor.Process(ctx, pipeline.Request{
		CommandID: commandID,
		Source:    opts.SourceURL,
		Options:   opts,
	})
	if err != nil {
		rt.logger.Printf("command failed command_id=%s chat_id=%d err=%v", commandID, msg.Chat.ID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		rt.reply(ctx, msg, replyGenericFailure)
		return
	}

	rt.logger.Printf(
		"Processed command_id=%s format=%s size=%dx%d bytes=%d",
		commandID,
		result.Format,
		result.Width,
		result.Height,
		result.Bytes,
	)
	rt.metrics.sourceBytesTotal.Add(float64(result.SourceBytes))
	rt.metrics.outputBytesTotal.Add(float64(result.Bytes))
	outcome = outcomeSucceeded
	span.SetStatus(codes.Ok, "processed")
}

func (rt *Runtime) sourceFetcher(opts *options.Options, msg *message) (pipeline.Fetcher, bool) {
	if strings.TrimSpace(opts.SourceURL) != "" {
		return pipeline.HTTPFetcher{Client: rt.fetchClient, MaxContentLength: rt.maxContentLength}, true
	}

	fileID, ok := attachmentFileID(msg)
	if !ok {
		return nil, false
	}
	return attachmentFetcher{api: rt.api, fileID: fileID, maxBytes: rt.maxContentLength}, true
}

func (rt *Runtime) reply(ctx context.Context, msg *message, text string) {
	if err := rt.api.sendMessage(ctx, msg.Chat.ID, msg.MessageID, text); err != nil {
		rt.logger.Printf("reply failed chat_id=%d err=%v", msg.Chat.ID, err)
	}
}

func (rt *Runtime) startUploadTicker(ctx context.Context, chatID int64) func() {
	tickerCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(uploadActionInterval)
		defer ticker.Stop()
		for {
			if err := rt.api.sendChatAction(tickerCtx, chatID, uploadAction); err != nil && tickerCtx.Err() == nil {
				rt.logger.Printf("chat action failed chat_id=%d err=%v", chatID, err)
			}
			select {
			case <-tickerCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return cancel
}

func messageText(msg *message) string {
	if strings.TrimSpace(msg.Text) != "" {
		return msg.Text
	}
	return msg.Caption
}

func commandArgs(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}

	first := trimmed
	rest := ""
	if i := strings.IndexFunc(trimmed, unicode.IsSpace); i >= 0 {
		first = trimmed[:i]
		rest = strings.TrimSpace(trimmed[i:])
	}
	if first != triggerWord {
		return "", false
	}
	return rest, true
}

func attachmentFileID(msg *message) (string, bool) {
	for i := len(msg.Photo) - 1; i >= 0; i-- {
		if strings.TrimSpace(msg.Photo[i].FileID) != "" {
			return msg.Photo[i].FileID, true
		}
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		return msg.Document.FileID, true
	}
	return "", false
}

func effectiveCaption(opts *options.Options) string {
	effective := opts.Effective()
	if len(effective) == 0 {
		return ""
	}
	return "applied options:\n" + strings.Join(effective, "\n")
}

type attachmentFetcher struct {
	api      *apiClient
	fileID   string
	maxBytes int64
}

func (f attachmentFetcher) Fetch(ctx context.Context, _ pipeline.Request) ([]byte, error) {
	meta, err := f.api.getFile(ctx, f.fileID)
	if err != nil {
		return nil, err
	}
	if meta.FileSize > 0 && meta.FileSize > f.maxBytes {
		return nil, fmt.Errorf("telegram file too large (>%d bytes)", f.maxBytes)
	}
	return f.api.downloadFile(ctx, meta.FilePath, f.maxBytes)
}

type documentEmitter struct {
	api     *apiClient
	chatID  int64
	replyTo int64
	caption string
}

func (e *documentEmitter) Emit(ctx context.Context, _ pipeline.Request, data []byte, format string, _, _ int) error {
	return e.api.sendDocument(ctx, e.chatID, e.replyTo, "img."+format, data, e.caption)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
