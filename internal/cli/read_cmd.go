package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/duailibe/monday-source/internal/monday"
	"github.com/duailibe/monday-source/internal/source"
	"github.com/duailibe/monday-source/internal/state"
)

type ReadCmd struct {
	Streams []string `arg:"" optional:"" help:"streams to read (default: all)"`
	Mode    string   `short:"m" enum:"full_refresh,incremental" default:"incremental" help:"sync mode; streams without a cursor always run full refresh"`
	State   string   `help:"state file (.json) or database (.db)" type:"path"`
	NoState bool     `name:"no-state" help:"ignore saved state and do not checkpoint"`
}

func (c *ReadCmd) Run(ctx context.Context, cmdCtx *commandContext) error {
	mode, err := monday.ParseSyncMode(c.Mode)
	if err != nil {
		return exitError(2, err)
	}
	configured, err := c.configuredStreams(mode)
	if err != nil {
		return exitError(mapErrorToExitCode(err), err)
	}

	client, err := cmdCtx.apiClient()
	if err != nil {
		code := mapErrorToExitCode(err)
		if code == 1 {
			code = 3
		}
		return exitError(code, err)
	}
	src, err := cmdCtx.source(client)
	if err != nil {
		return exitError(mapErrorToExitCode(err), err)
	}

	opts := source.ReadOptions{Streams: configured, State: state.NewDocument()}
	if cmdCtx.deps.NewRunID != nil {
		opts.RunID = cmdCtx.deps.NewRunID()
	}
	if !c.NoState {
		store, _, err := cmdCtx.openStore(c.State)
		if err != nil {
			return exitError(mapErrorToExitCode(err), err)
		}
		defer store.Close()
		doc, err := store.Load(ctx)
		if err != nil {
			return exitError(1, err)
		}
		opts.Store, opts.State = store, doc
	}

	enc := outputFor(cmdCtx).messageEncoder()
	opts.Emit = func(msg source.Message) error {
		return enc.Encode(msg)
	}

	summary, err := src.Read(ctx, opts)
	if err != nil {
		return exitError(mapErrorToExitCode(err), err)
	}
	if !cmdCtx.global.Quiet {
		names := make([]string, 0, len(summary.Records))
		for name := range summary.Records {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			_, _ = fmt.Fprintf(cmdCtx.deps.Err, "%s: %d records\n", name, summary.Records[name])
		}
	}
	return nil
}

func (c *ReadCmd) configuredStreams(mode monday.SyncMode) ([]source.ConfiguredStream, error) {
	names := c.Streams
	if len(names) == 0 {
		for _, def := range source.Definitions() {
			names = append(names, def.Name)
		}
	}
	out := make([]source.ConfiguredStream, 0, len(names))
	for _, name := range names {
		def, err := source.Lookup(name)
		if err != nil {
			return nil, err
		}
		streamMode := monday.FullRefresh
		if mode == monday.Incremental && def.SupportsIncremental() {
			streamMode = monday.Incremental
		}
		out = append(out, source.ConfiguredStream{Name: name, Mode: streamMode})
	}
	return out, nil
}
