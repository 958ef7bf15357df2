package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/duailibe/monday-source/internal/monday"
)

// CurrentVersion is the layout written by this release. Version 1 is the
// unversioned per-stream map that still carried the activity_logs entry.
const CurrentVersion = 2

// Document is every stream's persisted state.
type Document struct {
	Version int                     `json:"version"`
	RunID   string                  `json:"run_id,omitempty"`
	SavedAt time.Time               `json:"saved_at,omitempty"`
	Streams map[string]monday.State `json:"streams"`
}

func NewDocument() Document {
	return Document{Version: CurrentVersion, Streams: map[string]monday.State{}}
}

// Stream returns a copy of one stream's state, empty when none is stored.
func (d Document) Stream(name string) monday.State {
	return d.Streams[name].Clone()
}

func (d Document) Names() []string {
	names := make([]string, 0, len(d.Streams))
	for name := range d.Streams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Checkpoint is one stream's state after a closed slice.
type Checkpoint struct {
	Stream string
	State  monday.State
	RunID  string
	At     time.Time
}

type Store interface {
	Load(ctx context.Context) (Document, error)
	Checkpoint(ctx context.Context, cp Checkpoint) error
	Replace(ctx context.Context, doc Document) error
	Close() error
}

// Upgrade brings a legacy document to CurrentVersion, dropping the
// activity_logs entry from every stream that still has it. It returns the
// names of the streams it rewrote.
func Upgrade(doc Document) (Document, []string, error) {
	if doc.Version >= CurrentVersion {
		return doc, nil, nil
	}
	migration := monday.StateMigration{}
	out := Document{Version: CurrentVersion, RunID: doc.RunID, SavedAt: doc.SavedAt, Streams: make(map[string]monday.State, len(doc.Streams))}
	var migrated []string
	for _, name := range doc.Names() {
		st := doc.Streams[name]
		if migration.ShouldMigrate(st) {
			next, err := migration.Migrate(st)
			if err != nil {
				return Document{}, nil, fmt.Errorf("migrate %s: %w", name, err)
			}
			st = next
			migrated = append(migrated, name)
		}
		out.Streams[name] = st
	}
	return out, migrated, nil
}

// decodeDocument reads either layout. A body without a version key is the
// legacy stream map.
func decodeDocument(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewDocument(), nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Document{}, fmt.Errorf("decode state: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if _, ok := probe["version"]; !ok {
		var streams map[string]monday.State
		if err := dec.Decode(&streams); err != nil {
			return Document{}, fmt.Errorf("decode legacy state: %w", err)
		}
		return Document{Version: 1, Streams: streams}, nil
	}

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode state: %w", err)
	}
	if doc.Streams == nil {
		doc.Streams = map[string]monday.State{}
	}
	return doc, nil
}

func decodeStreamState(raw string) (monday.State, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var st monday.State
	if err := dec.Decode(&st); err != nil {
		return nil, fmt.Errorf("decode stream state: %w", err)
	}
	if st == nil {
		st = monday.State{}
	}
	return st, nil
}
