package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.yaml.in/yaml/v3"

	"github.com/ekisa-team/stylus/internal/backend"
	"github.com/ekisa-team/stylus/internal/cli"
	"github.com/ekisa-team/stylus/internal/config"
	"github.com/ekisa-team/stylus/internal/envvar"
	"github.com/ekisa-team/stylus/internal/module"
	"github.com/ekisa-team/stylus/internal/resource"
	"github.com/ekisa-team/stylus/internal/xfs"
)

// paramsFlag collects repeated -param key=value flags. Values are decoded as
// YAML scalars so numbers and lists keep their type.
type paramsFlag map[string]any

func (p paramsFlag) String() string {
	pairs := make([]string, 0, len(p))
	for k, v := range p {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(pairs, ",")
}

func (p paramsFlag) Set(s string) error {
	key, raw, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return errors.New("expected key=value")
	}

	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return fmt.Errorf("param %s: %w", key, err)
	}
	p[key] = v
	return nil
}

func run(args []string) error {
	params := paramsFlag{}

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var (
		flagSource   = fs.String("source", "", "Model source (URL, path, asset://id or hf://org/repo/file[@rev])")
		flagBackend  = fs.String("backend", string(backend.ProviderWASM), "Backend provider")
		flagInput    = fs.String("input", "", "Input passed to the model")
		flagCacheDir = fs.String("cache-dir", "", "Download cache directory")
	)
	fs.Var(params, "param", "Backend parameter key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src, err := resource.ParseSource(*flagSource)
	if err != nil {
		return err
	}

	cacheDir := *flagCacheDir
	if cacheDir == "" {
		cacheDir = os.Getenv(envvar.StylusModelsPath)
	}
	if cacheDir == "" {
		cacheDir = config.DefaultModelsPath()
	}

	factory, err := newBackends().Factory(backend.Provider(*flagBackend), params)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mod := module.New(resource.NewFetcher(xfs.ExpandTilde(cacheDir)), factory)
	defer mod.Close()

	job := cli.Job{Module: mod, Source: src, Input: *flagInput}

	var output string
	if cli.IsTerminal(os.Stderr) {
		output, err = cli.RunInteractive(ctx, job, os.Stderr)
	} else {
		output, err = job.Run(ctx)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, output)
	return nil
}
