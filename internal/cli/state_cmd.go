package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/duailibe/monday-source/internal/state"
)

type StateCmd struct {
	Show    StateShowCmd    `cmd:"" help:"Print saved state"`
	Migrate StateMigrateCmd `cmd:"" help:"Upgrade legacy saved state"`
}

type StateShowCmd struct {
	State string `help:"state file (.json) or database (.db)" type:"path"`
}

func (c *StateShowCmd) Run(ctx context.Context, cmdCtx *commandContext) error {
	store, path, err := cmdCtx.openStore(c.State)
	if err != nil {
		return exitError(mapErrorToExitCode(err), err)
	}
	defer store.Close()

	doc, err := store.Load(ctx)
	if err != nil {
		return exitError(1, err)
	}

	out := outputFor(cmdCtx)
	if out.JSON {
		return out.PrintJSON(doc)
	}
	if len(doc.Streams) == 0 {
		_, err := fmt.Fprintf(out.Out, "No state saved in %s\n", path)
		return err
	}
	rows := make([][]string, 0, len(doc.Streams))
	for _, name := range doc.Names() {
		raw, err := json.Marshal(doc.Streams[name])
		if err != nil {
			return exitError(1, err)
		}
		rows = append(rows, []string{name, string(raw)})
	}
	return out.PrintTable([]string{"Stream", "State"}, rows)
}

type StateMigrateCmd struct {
	State  string `help:"state file (.json) or database (.db)" type:"path"`
	DryRun bool   `name:"dry-run" help:"report what would change without writing"`
}

type migrateResult struct {
	Path     string   `json:"path"`
	Version  int      `json:"version"`
	Migrated []string `json:"migrated"`
	Written  bool     `json:"written"`
}

func (c *StateMigrateCmd) Run(ctx context.Context, cmdCtx *commandContext) error {
	store, path, err := cmdCtx.openStore(c.State)
	if err != nil {
		return exitError(mapErrorToExitCode(err), err)
	}
	defer store.Close()

	doc, err := store.Load(ctx)
	if err != nil {
		return exitError(1, err)
	}
	upgraded, migrated, err := state.Upgrade(doc)
	if err != nil {
		return exitError(1, err)
	}

	result := migrateResult{Path: path, Version: upgraded.Version, Migrated: migrated}
	if result.Migrated == nil {
		result.Migrated = []string{}
	}
	if doc.Version < state.CurrentVersion && !c.DryRun {
		if err := store.Replace(ctx, upgraded); err != nil {
			return exitError(1, err)
		}
		result.Written = true
	}

	out := outputFor(cmdCtx)
	if out.JSON {
		return out.PrintJSON(result)
	}
	if len(migrated) == 0 {
		_, err := fmt.Fprintf(out.Out, "State in %s is up to date (version %d)\n", path, upgraded.Version)
		return err
	}
	verb := "Migrated"
	if !result.Written {
		verb = "Would migrate"
	}
	_, err = fmt.Fprintf(out.Out, "%s %d stream(s) in %s: %v\n", verb, len(migrated), path, migrated)
	return err
}
