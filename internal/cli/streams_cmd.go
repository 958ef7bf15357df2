package cli

import (
	"context"
	"strings"

	"github.com/duailibe/monday-source/internal/source"
)

type StreamsCmd struct{}

type streamInfo struct {
	Name        string   `json:"name"`
	SyncModes   []string `json:"sync_modes"`
	CursorField string   `json:"cursor_field,omitempty"`
	PrimaryKey  string   `json:"primary_key"`
	Parent      string   `json:"parent,omitempty"`
	Fields      []string `json:"fields"`
}

func (c *StreamsCmd) Run(_ context.Context, cmdCtx *commandContext) error {
	src, err := cmdCtx.source(nil)
	if err != nil {
		return exitError(mapErrorToExitCode(err), err)
	}

	defs := source.Definitions()
	infos := make([]streamInfo, 0, len(defs))
	for _, def := range defs {
		modes := make([]string, 0, 2)
		for _, m := range def.SyncModes() {
			modes = append(modes, string(m))
		}
		infos = append(infos, streamInfo{
			Name:        def.Name,
			SyncModes:   modes,
			CursorField: def.CursorField,
			PrimaryKey:  def.PrimaryKey,
			Parent:      def.Parent,
			Fields:      src.Catalog().Fields(def.Name),
		})
	}

	out := outputFor(cmdCtx)
	if out.JSON {
		return out.PrintJSON(infos)
	}
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{info.Name, strings.Join(info.SyncModes, ","), dash(info.CursorField), dash(info.Parent)})
	}
	return out.PrintTable([]string{"Stream", "Sync modes", "Cursor", "Parent"}, rows)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
