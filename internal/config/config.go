package config

import (
	"os"
	"runtime"
	"strconv"
	"time"
)

type Config struct {
	Bot   BotConfig
	Fetch FetchConfig
	Ops   OpsConfig
	Trace TraceConfig
}

type BotConfig struct {
	Token          string
	APIBaseURL     string
	PollTimeout    time.Duration
	RequestTimeout time.Duration
	MaxConcurrency int
}

type FetchConfig struct {
	MaxContentLength int64
}

type OpsConfig struct {
	Addr string
}

type TraceConfig struct {
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func Load() Config {
	return Config{
		Bot: BotConfig{
			Token:          env("IMGBOT_TOKEN", ""),
			APIBaseURL:     env("IMGBOT_API_BASE_URL", "https://api.telegram.org"),
			PollTimeout:    envDuration("IMGBOT_POLL_TIMEOUT", 30*time.Second),
			RequestTimeout: envDuration("IMGBOT_REQUEST_TIMEOUT", 30*time.Second),
			MaxConcurrency: envInt("IMGBOT_MAX_CONCURRENCY", max(2, runtime.NumCPU())),
		},
		Fetch: FetchConfig{
			MaxContentLength: envInt64("IMGBOT_MAX_CONTENT_LENGTH", 10_000_000),
		},
		Ops: OpsConfig{
			Addr: env("IMGBOT_OPS_ADDR", ":8080"),
		},
		Trace: TraceConfig{
			Exporter:     env("IMGBOT_TRACE_EXPORTER", "none"),
			OTLPEndpoint: env("IMGBOT_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("IMGBOT_OTLP_INSECURE", false),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt64(key string, fallback int64) int64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
