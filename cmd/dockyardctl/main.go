// Copyright (c) 2025 AUTHORS All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command dockyardctl inspects a running registry.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/shayne/yargs"
	"github.com/yeetrun/dockyard/pkg/catalog"
)

type globalFlagsParsed struct {
	Registry string        `flag:"registry" help:"Registry base URL (DOCKYARD_REGISTRY)"`
	Timeout  time.Duration `flag:"timeout" help:"Request timeout (default 10s)"`
}

type catalogFlagsParsed struct {
	JSON bool `flag:"json" help:"Print the catalog as JSON"`
}

const (
	defaultRegistry = "http://localhost:5000"
	defaultTimeout  = 10 * time.Second
)

var (
	errPrefix = color.New(color.FgRed, color.Bold).SprintFunc()
	heading   = color.New(color.Bold).SprintFunc()
)

var global = globalFlagsParsed{
	Registry: defaultRegistry,
	Timeout:  defaultTimeout,
}

func buildHelpConfig() yargs.HelpConfig {
	return yargs.HelpConfig{
		Command: yargs.CommandInfo{
			Name:        "dockyardctl",
			Description: "Inspect a dockyard registry",
			Examples: []string{
				"dockyardctl catalog",
				"dockyardctl --registry http://registry:5000 catalog --json",
				"dockyardctl ping",
			},
		},
		SubCommands: map[string]yargs.SubCommandInfo{
			"catalog": {
				Name:        "catalog",
				Description: "List repositories",
				Examples:    []string{"dockyardctl catalog --json"},
			},
			"ping": {
				Name:        "ping",
				Description: "Check the registry API version",
			},
		},
	}
}

func parseGlobalFlags(args []string) (globalFlagsParsed, []string, error) {
	result, err := yargs.ParseKnownFlags[globalFlagsParsed](args, yargs.KnownFlagsOptions{})
	if err != nil {
		return globalFlagsParsed{}, nil, err
	}
	return result.Flags, result.RemainingArgs, nil
}

func main() {
	flags, remaining, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(2)
	}
	if env := os.Getenv("DOCKYARD_REGISTRY"); env != "" {
		global.Registry = env
	}
	if flags.Registry != "" {
		global.Registry = flags.Registry
	}
	if flags.Timeout > 0 {
		global.Timeout = flags.Timeout
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	handlers := map[string]yargs.SubcommandHandler{
		"catalog": handleCatalog,
		"ping":    handlePing,
	}
	if err := yargs.RunSubcommands(ctx, remaining, buildHelpConfig(), globalFlagsParsed{}, handlers); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", errPrefix("error:"), err)
}

func newClient() *catalog.Client {
	return catalog.NewClient(global.Registry,
		catalog.WithTimeout(global.Timeout),
		catalog.WithUserAgent("dockyardctl"),
	)
}

func handleCatalog(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "catalog" {
		args = args[1:]
	}
	result, err := yargs.ParseFlags[catalogFlagsParsed](args)
	if err != nil {
		return err
	}
	return runCatalog(ctx, os.Stdout, newClient(), result.Flags.JSON)
}

// runCatalog fetches the catalog in the background so an interrupt can
// cancel the request without waiting for the client timeout.
func runCatalog(ctx context.Context, w io.Writer, c *catalog.Client, asJSON bool) error {
	var (
		list catalog.RepositoryList
		err  error
	)
	task := c.Fetch(context.WithoutCancel(ctx), func(l catalog.RepositoryList, e error) {
		list, err = l, e
	})
	select {
	case <-task.Done():
	case <-ctx.Done():
		if task.Cancel() {
			<-task.Done()
			return ctx.Err()
		}
		<-task.Done()
	}
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	fmt.Fprintln(w, heading(fmt.Sprintf("REPOSITORIES (%d)", len(list.Repositories))))
	for _, repo := range list.Repositories {
		fmt.Fprintln(w, repo)
	}
	return nil
}

func handlePing(ctx context.Context, args []string) error {
	return runPing(ctx, os.Stdout, newClient())
}

func runPing(ctx context.Context, w io.Writer, c *catalog.Client) error {
	v, err := c.Ping(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s\n", heading(global.Registry), v)
	return nil
}
