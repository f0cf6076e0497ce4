// Package slog adapts a log/slog.Handler to the agent.Logger interface.
package slog

import (
	"context"
	"log/slog"
	"sort"

	agent "github.com/gojek/courier-agent"
)

// New returns a new agent.Logger that wraps the slog.Handler.
func New(h slog.Handler) agent.Logger {
	return &slogWrapper{log: slog.New(h)}
}

var _ agent.Logger = (*slogWrapper)(nil)

type slogWrapper struct {
	log *slog.Logger
}

func (sw *slogWrapper) Info(ctx context.Context, msg string, attrs map[string]any) {
	sw.log.LogAttrs(ctx, slog.LevelInfo, msg, sw.mapAttrs(attrs)...)
}

func (sw *slogWrapper) Error(ctx context.Context, err error, attrs map[string]any) {
	sw.log.LogAttrs(ctx, slog.LevelError, err.Error(), sw.mapAttrs(attrs)...)
}

func (sw *slogWrapper) Warn(ctx context.Context, msg string, attrs map[string]any) {
	sw.log.LogAttrs(ctx, slog.LevelWarn, msg, sw.mapAttrs(attrs)...)
}

func (sw *slogWrapper) Debug(ctx context.Context, msg string, attrs map[string]any) {
	sw.log.LogAttrs(ctx, slog.LevelDebug, msg, sw.mapAttrs(attrs)...)
}

// mapAttrs orders attributes by key so lines are stable between runs.
func (sw *slogWrapper) mapAttrs(attrs map[string]any) []slog.Attr {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	logAttrs := make([]slog.Attr, 0, len(attrs))
	for _, k := range keys {
		logAttrs = append(logAttrs, slog.Any(k, attrs[k]))
	}

	return logAttrs
}
