// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dockyard serves a container registry speaking the Distribution
// API v2.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shayne/yargs"
	"github.com/yeetrun/dockyard/pkg/config"
	"github.com/yeetrun/dockyard/pkg/logging"
	"go.uber.org/zap"
)

type flagsParsed struct {
	Config   string `flag:"config" short:"c" help:"Path to a TOML or YAML config file"`
	Addr     string `flag:"addr" help:"Listen address, overrides the config file"`
	LogLevel string `flag:"log-level" help:"Log level (debug|info|warn|error)"`
	Dev      bool   `flag:"dev" help:"Human readable development logging"`
	Help     bool   `flag:"help" short:"h" help:"Show help"`
}

const usage = `Usage: dockyard [flags]

Serve a container registry.

Flags:
  -c, --config PATH     TOML or YAML config file
      --addr ADDR       listen address (default :5000)
      --log-level LVL   debug, info, warn or error
      --dev             development logging
  -h, --help            show this help

Every setting can also be set with DOCKYARD_* environment variables, for
example DOCKYARD_STORAGE_ROOT_DIR=/srv/registry.
`

func main() {
	result, err := yargs.ParseFlags[flagsParsed](os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if result.Flags.Help {
		fmt.Print(usage)
		return
	}

	cfg, err := loadConfig(result.Flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logging.New(logging.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("dockyard exited", zap.Error(err))
		os.Exit(1)
	}
}

// loadConfig applies command line flags on top of the loaded config.
func loadConfig(flags flagsParsed) (*config.Config, error) {
	cfg, err := config.Load(flags.Config)
	if err != nil {
		return nil, err
	}
	if flags.Addr != "" {
		cfg.Addr = flags.Addr
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if flags.Dev {
		cfg.Log.Development = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
