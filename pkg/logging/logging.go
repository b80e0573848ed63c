// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logging builds the zap loggers used by dockyard and logs how
// each registry response was resolved.
package logging

import (
	"fmt"
	"net/http"

	"github.com/yeetrun/dockyard/pkg/response"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string
}

// New creates a logger. Development loggers use the console encoder,
// everything else is JSON.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          encodingFormat(cfg.Development),
		EncoderConfig:     encoderConfig(cfg.Development),
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !cfg.Development,
	}
	return zapCfg.Build()
}

func encodingFormat(development bool) string {
	if development {
		return "console"
	}
	return "json"
}

func encoderConfig(development bool) zapcore.EncoderConfig {
	if development {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return ec
	}
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	return ec
}

// Observer returns a response.Observer that logs every resolved request.
// Successes are logged at debug, domain failures at info and dispatch
// failures at error. A failed body write is logged at warn.
func Observer(log *zap.Logger) response.Observer {
	return response.ObserverFunc(func(r *http.Request, kind response.Kind, status int, err error) {
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Stringer("kind", kind),
		}
		if kind == response.KindDispatchFailure {
			log.Error("dispatch failure", append(fields, zap.Error(err))...)
			return
		}
		if err != nil {
			// The response was resolved but the body did not reach the client.
			log.Warn("write response", append(fields, zap.Error(err))...)
			return
		}
		switch kind {
		case response.KindSuccess:
			log.Debug("request", fields...)
		case response.KindFailure:
			log.Info("request failed", fields...)
		}
	})
}
