package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vprompt/internal/config"
	"github.com/vango-dev/vprompt/internal/errors"
	"github.com/vango-dev/vprompt/internal/treefile"
	"github.com/vango-dev/vprompt/pkg/archive"
	"github.com/vango-dev/vprompt/pkg/reconcile"
	"github.com/vango-dev/vprompt/pkg/render"
	"github.com/vango-dev/vprompt/pkg/snapshot"
	"github.com/vango-dev/vprompt/pkg/tokenizer"
)

// cliPipe names the pipe --data values are pumped through.
const cliPipe = "cli"

// app holds the state shared by all commands.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

// load reads the configuration and sets up logging. Without --config the
// nearest vprompt.json is used, and defaults when there is none.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := a.readConfig()
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Level()}))
	return nil
}

func (a *app) readConfig() (*config.Config, error) {
	if a.configPath != "" {
		return config.LoadFile(a.configPath)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := config.FindProjectRoot(wd)
	if err != nil {
		return config.New(), nil
	}
	return config.Load(root)
}

// open loads the tree document at path, runs the first pass and pumps
// data through the cli pipe. With data the returned snapshot is the one
// of the pass after the last pump.
func (a *app) open(ctx context.Context, path string, data []string, opts ...reconcile.Option) (*reconcile.Reconciler, *snapshot.Node, error) {
	rec, err := a.reconciler(path, opts...)
	if err != nil {
		return nil, nil, err
	}
	snap, err := rec.Reconcile(ctx)
	if err != nil || len(data) == 0 {
		return rec, snap, err
	}

	pipe := rec.CreatePipe(cliPipe)
	for _, d := range data {
		if err := pipe.Pump(ctx, d); err != nil {
			return nil, nil, err
		}
	}
	snap, err = rec.Reconcile(ctx)
	return rec, snap, err
}

// reconciler loads the tree document at path into a new Reconciler.
func (a *app) reconciler(path string, opts ...reconcile.Option) (*reconcile.Reconciler, error) {
	doc, err := treefile.LoadFile(path)
	if err != nil {
		return nil, err
	}
	el, err := doc.Element()
	if err != nil {
		return nil, err
	}
	a.logger.Debug("tree loaded", "path", path, "components", len(doc.ComponentNames()))

	opts = append([]reconcile.Option{reconcile.WithLogger(a.logger)}, opts...)
	return reconcile.New(el, opts...), nil
}

// rendererConfig builds the renderer configuration from vprompt.json and
// the flags the user set.
func (a *app) rendererConfig(cmd *cobra.Command, maxTokens int, tokenizerName, separator string) (render.RendererConfig, error) {
	cfg := *a.cfg
	flags := cmd.Flags()
	if flags.Changed("max-tokens") {
		cfg.MaxTokens = maxTokens
	}
	if flags.Changed("tokenizer") {
		cfg.Tokenizer = tokenizerName
	}
	if flags.Changed("separator") {
		cfg.Separator = separator
	}
	if err := cfg.Validate(); err != nil {
		return render.RendererConfig{}, err
	}

	tok, err := tokenizer.New(cfg.Tokenizer)
	if err != nil {
		return render.RendererConfig{}, errors.New("VP161").
			WithDetail("The tokenizer could not be loaded.").
			Wrap(err)
	}
	return render.RendererConfig{
		Tokenizer: tok,
		MaxTokens: cfg.MaxTokens,
		Separator: cfg.Separator,
		Logger:    a.logger,
	}, nil
}

// archiveStore returns the configured archive backend.
func (a *app) archiveStore(ctx context.Context) (archive.Store, error) {
	switch {
	case a.cfg.Archive.Bucket != "":
		client, err := archive.NewS3Client(ctx, a.cfg.Archive.Region)
		if err != nil {
			return nil, errors.New("VP180").Wrap(err)
		}
		return archive.NewS3Store(client, a.cfg.Archive.Bucket, a.cfg.Archive.Prefix), nil
	case a.cfg.Archive.Dir != "":
		store, err := archive.NewDiskStore(a.cfg.ArchiveDir())
		if err != nil {
			return nil, errors.New("VP180").Wrap(err)
		}
		return store, nil
	}
	return nil, errors.New("VP180").
		WithDetail("No archive is configured.").
		WithSuggestion(`Set archive.bucket or archive.dir in vprompt.json`)
}
