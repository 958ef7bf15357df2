package source

import (
	"fmt"
	"log/slog"

	"github.com/duailibe/monday-source/internal/monday"
)

// Definition describes one stream the connector exposes.
type Definition struct {
	Name        string
	PrimaryKey  string
	CursorField string
	Parent      string
	ParentKey   string
}

func (d Definition) SupportsIncremental() bool { return d.CursorField != "" }

func (d Definition) SyncModes() []monday.SyncMode {
	if d.SupportsIncremental() {
		return []monday.SyncMode{monday.FullRefresh, monday.Incremental}
	}
	return []monday.SyncMode{monday.FullRefresh}
}

var definitions = []Definition{
	{Name: "activity_logs", PrimaryKey: "id", CursorField: "created_at_int"},
	{Name: "boards", PrimaryKey: "id", CursorField: "updated_at_int", Parent: "activity_logs", ParentKey: "board_id"},
	{Name: "items", PrimaryKey: "id", CursorField: "updated_at_int", Parent: "activity_logs", ParentKey: "pulse_id"},
	{Name: "tags", PrimaryKey: "id"},
	{Name: "teams", PrimaryKey: "id"},
	{Name: "updates", PrimaryKey: "id"},
	{Name: "users", PrimaryKey: "id"},
	{Name: "workspaces", PrimaryKey: "id"},
}

func Definitions() []Definition {
	return append([]Definition(nil), definitions...)
}

func Lookup(name string) (Definition, error) {
	for _, d := range definitions {
		if d.Name == name {
			return d, nil
		}
	}
	return Definition{}, fmt.Errorf("%w: %q", monday.ErrUnknownStream, name)
}

// Settings size the requests each stream makes.
type Settings struct {
	PageSize            int
	NestedLimit         int
	NestedItemsPerPage  int
	ParentCompleteFetch bool
}

// Catalog builds ready-to-read streams. Every call returns fresh instances,
// so concurrent reads never share cursors or parent handles.
type Catalog struct {
	api      monday.API
	manifest *monday.Manifest
	config   monday.Config
	settings Settings
	logger   *slog.Logger
}

func NewCatalog(api monday.API, manifest *monday.Manifest, config monday.Config, settings Settings, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{api: api, manifest: manifest, config: config, settings: settings, logger: logger}
}

func (c *Catalog) Stream(name string, mode monday.SyncMode) (*Stream, error) {
	def, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if mode == monday.Incremental && !def.SupportsIncremental() {
		return nil, fmt.Errorf("%w: stream %s does not support incremental sync", monday.ErrInvalidConfig, name)
	}

	limit, nested := c.settings.PageSize, 0
	var paginator monday.Paginator = monday.PageIncrement{PageSize: c.settings.PageSize}
	var extractor monday.Extractor = monday.PathExtractor{FieldPath: []string{"data", name}, Config: c.config, Logger: c.logger}
	var transforms []monday.Transformation

	switch name {
	case "activity_logs":
		limit, nested = 1, c.settings.NestedLimit
		paginator = monday.ItemPagination{PageSize: c.settings.NestedLimit}
		extractor = monday.ActivityExtractor{}
	case "items":
		limit, nested = 1, c.settings.NestedLimit
		paginator = monday.ItemCursorPagination{}
		extractor = firstMatch{
			monday.PathExtractor{FieldPath: []string{"data", "items"}, Config: c.config, Logger: c.logger},
			monday.PathExtractor{
				FieldPath:      []string{"data", "boards", "*", "items_page", "items"},
				PaginationPath: []string{"data", "next_items_page", "items"},
				Config:         c.config,
				Logger:         c.logger,
			},
		}
		transforms = []monday.Transformation{monday.TransformColumnValues{}, monday.AddUpdatedAtInt{}}
	case "boards":
		transforms = []monday.Transformation{monday.AddUpdatedAtInt{}}
	case "tags":
		limit, paginator = 0, nil
	}

	requester, err := monday.NewRequester(monday.RequesterOptions{
		Name:        name,
		Mode:        mode,
		Limit:       limit,
		NestedLimit: nested,
		Manifest:    c.manifest,
		Config:      c.config,
	})
	if err != nil {
		return nil, err
	}

	s := &Stream{
		def:        def,
		api:        c.api,
		requester:  requester,
		paginator:  paginator,
		extractor:  extractor,
		transforms: transforms,
		logger:     c.logger.With("stream", name),
	}
	if !def.SupportsIncremental() {
		return s, nil
	}

	switch def.Parent {
	case "":
		s.cursor = monday.NewTimeSliceCursor(def.CursorField)
	default:
		parent, err := c.Stream(def.Parent, monday.Incremental)
		if err != nil {
			return nil, fmt.Errorf("parent of %s: %w", name, err)
		}
		s.cursor, err = monday.NewSubstreamSlicer(monday.SubstreamOptions{
			CursorField:         def.CursorField,
			Parents:             []monday.ParentStreamConfig{{Stream: parent, ParentKey: def.ParentKey, PartitionField: "ids"}},
			NestedItemsPerPage:  c.settings.NestedItemsPerPage,
			ParentCompleteFetch: c.settings.ParentCompleteFetch,
		})
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Fields lists the manifest properties of a stream, derived ones included.
func (c *Catalog) Fields(name string) []string {
	schema, ok := c.manifest.Schema(name)
	if !ok {
		return nil
	}
	return schema.Names()
}
