package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func zapConfig(out *bytes.Buffer) logger.Config {
	return logger.Config{
		Service:          "demo",
		Version:          "1.2.3",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		Level:            slog.LevelInfo,
		Output:           out,
		SampleInitial:    100000,
		SampleThereafter: 100000,
	}
}

func decodeLine(t *testing.T, out *bytes.Buffer) map[string]any {
	t.Helper()
	line := strings.TrimSpace(out.String())
	require.NotEmpty(t, line)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &m), "expected one JSON line, got %s", line)
	return m
}

func TestInit_DevStd_TextOutput(t *testing.T) {
	var out bytes.Buffer
	logger.Init(logger.Config{
		Service:   "demo",
		Version:   "v0.0.1",
		Env:       logger.EnvDev,
		Backend:   logger.BackendStd,
		Level:     slog.LevelDebug,
		AddSource: true,
		Output:    &out,
	})

	slog.Info("Hello world")

	s := out.String()
	require.NotContains(t, s, "{")
	require.Contains(t, s, "Hello world")
	require.Contains(t, s, "service=demo")
	require.Contains(t, s, "env=dev")
}

func TestInit_StageStd_JSONOutput(t *testing.T) {
	var out bytes.Buffer
	logger.Init(logger.Config{Service: "demo", Env: logger.EnvStage, Backend: logger.BackendStd, Output: &out})

	slog.Warn("careful", "k", "v")

	m := decodeLine(t, &out)
	require.Equal(t, "careful", m["msg"])
	require.Equal(t, "stage", m["env"])
	require.Equal(t, "v", m["k"])
}

func TestInit_ProdZap_JSONOutput(t *testing.T) {
	var out bytes.Buffer
	logger.Init(zapConfig(&out))

	slog.Info("booted", slog.String("k", "v"))

	m := decodeLine(t, &out)
	require.Equal(t, "booted", m["msg"])
	require.Equal(t, "demo", m["service"])
	require.Equal(t, "prod", m["env"])
	require.Equal(t, "1.2.3", m["version"])
	require.Equal(t, "INFO", m["level"])
	require.Equal(t, "v", m["k"])
	require.NotEmpty(t, m["instance_id"])
}

func TestInit_LevelFilters(t *testing.T) {
	var out bytes.Buffer
	cfg := zapConfig(&out)
	cfg.Level = slog.LevelWarn
	logger.Init(cfg)

	slog.Info("dropped")
	require.Empty(t, out.String())

	slog.Error("kept")
	require.Equal(t, "kept", decodeLine(t, &out)["msg"])
}

func TestInit_DebugFlag(t *testing.T) {
	var out bytes.Buffer
	logger.Init(logger.Config{Env: logger.EnvDev, Debug: true, Output: &out})

	slog.Debug("noisy")
	require.Contains(t, out.String(), "noisy")
	require.Contains(t, out.String(), "service=app")
}

func TestTraceIDsFromContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	var out bytes.Buffer
	logger.Init(zapConfig(&out))

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	slog.InfoContext(ctx, "with trace")
	span.End()

	m := decodeLine(t, &out)
	require.Equal(t, "with trace", m["msg"])
	require.Equal(t, span.SpanContext().TraceID().String(), m["trace_id"])
	require.Equal(t, span.SpanContext().SpanID().String(), m["span_id"])

	require.Len(t, logger.AttrsFromCtx(ctx), 2)
	require.Nil(t, logger.AttrsFromCtx(context.Background()))
}

func TestContextLogger(t *testing.T) {
	var out bytes.Buffer
	base := logger.Init(zapConfig(&out))
	require.Same(t, base, logger.L())
	require.Same(t, base, logger.FromContext(context.Background()))

	scoped := base.With("session", "s-1")
	ctx := logger.WithContext(context.Background(), scoped)
	logger.FromContext(ctx).Info("scoped")

	require.Equal(t, "s-1", decodeLine(t, &out)["session"])
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range cases {
		got, err := logger.ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := logger.ParseLevel("loud")
	require.Error(t, err)
}

func TestDetectEnv(t *testing.T) {
	t.Setenv("APP_ENV", "")
	require.Equal(t, logger.EnvDev, logger.DetectEnv())

	t.Setenv("APP_ENV", "staging")
	require.Equal(t, logger.EnvStage, logger.DetectEnv())

	t.Setenv("APP_ENV", "Production")
	require.Equal(t, logger.EnvProd, logger.DetectEnv())
}
