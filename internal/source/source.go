package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duailibe/monday-source/internal/monday"
	"github.com/duailibe/monday-source/internal/state"
)

type MessageType string

const (
	RecordMessage MessageType = "RECORD"
	StateMessage  MessageType = "STATE"
)

type Message struct {
	Type      MessageType   `json:"type"`
	Stream    string        `json:"stream"`
	Record    monday.Record `json:"record,omitempty"`
	State     monday.State  `json:"state,omitempty"`
	EmittedAt time.Time     `json:"emitted_at"`
}

type ConfiguredStream struct {
	Name string
	Mode monday.SyncMode
}

type ReadOptions struct {
	Streams []ConfiguredStream
	// Store receives a checkpoint after every closed slice. It may be nil.
	Store state.Store
	State state.Document
	RunID string
	Emit  func(Message) error
}

// Summary counts what a read produced per stream.
type Summary struct {
	Records map[string]int
	Slices  map[string]int
}

type Source struct {
	api         monday.API
	catalog     *Catalog
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

type Options struct {
	API         monday.API
	Manifest    *monday.Manifest
	Config      monday.Config
	Settings    Settings
	Concurrency int
	Now         func() time.Time
	Logger      *slog.Logger
}

func New(opts Options) *Source {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Source{
		api:         opts.API,
		catalog:     NewCatalog(opts.API, opts.Manifest, opts.Config, opts.Settings, logger),
		concurrency: concurrency,
		now:         now,
		logger:      logger,
	}
}

func (s *Source) Catalog() *Catalog { return s.catalog }

// Check validates the token with the cheapest query the API offers.
func (s *Source) Check(ctx context.Context) (monday.User, error) {
	return s.api.Me(ctx)
}

// Read syncs the configured streams, up to the configured number at once.
// Legacy state is upgraded (and written back to the store) before any
// stream starts.
func (s *Source) Read(ctx context.Context, opts ReadOptions) (Summary, error) {
	if opts.Emit == nil {
		return Summary{}, fmt.Errorf("read: no emit function")
	}
	doc, migrated, err := state.Upgrade(opts.State)
	if err != nil {
		return Summary{}, err
	}
	if len(migrated) > 0 {
		s.logger.Info("migrated legacy state", "streams", migrated)
		if opts.Store != nil {
			if err := opts.Store.Replace(ctx, doc); err != nil {
				return Summary{}, fmt.Errorf("save migrated state: %w", err)
			}
		}
	}

	for _, cs := range opts.Streams {
		if _, err := Lookup(cs.Name); err != nil {
			return Summary{}, err
		}
	}

	var mu sync.Mutex
	summary := Summary{Records: map[string]int{}, Slices: map[string]int{}}
	emit := func(msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		if msg.Type == RecordMessage {
			summary.Records[msg.Stream]++
		}
		return opts.Emit(msg)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, cs := range opts.Streams {
		g.Go(func() error {
			slices, err := s.readStream(ctx, cs, doc.Stream(cs.Name), opts, emit)
			mu.Lock()
			summary.Slices[cs.Name] = slices
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("read %s: %w", cs.Name, err)
			}
			return nil
		})
	}
	err = g.Wait()
	return summary, err
}

func (s *Source) readStream(ctx context.Context, cs ConfiguredStream, st monday.State, opts ReadOptions, emit func(Message) error) (int, error) {
	mode := cs.Mode
	if mode == "" {
		mode = monday.FullRefresh
	}
	stream, err := s.catalog.Stream(cs.Name, mode)
	if err != nil {
		return 0, err
	}
	logger := s.logger.With("stream", cs.Name, "mode", mode)
	logger.Info("stream started")

	slices := 0
	for slice, err := range stream.StreamSlices(ctx, mode, stream.CursorField(), st) {
		if err != nil {
			return slices, err
		}
		for record, err := range stream.ReadRecords(ctx, mode, stream.CursorField(), slice, st) {
			if err != nil {
				return slices, err
			}
			if err := emit(Message{Type: RecordMessage, Stream: cs.Name, Record: record, EmittedAt: s.now()}); err != nil {
				return slices, err
			}
		}
		slices++

		if mode != monday.Incremental {
			continue
		}
		current := stream.State()
		if err := emit(Message{Type: StateMessage, Stream: cs.Name, State: current, EmittedAt: s.now()}); err != nil {
			return slices, err
		}
		if opts.Store != nil {
			cp := state.Checkpoint{Stream: cs.Name, State: current, RunID: opts.RunID, At: s.now()}
			if err := opts.Store.Checkpoint(ctx, cp); err != nil {
				return slices, fmt.Errorf("checkpoint: %w", err)
			}
		}
		logger.Debug("slice closed", "slice", slices, "state", current)
	}
	logger.Info("stream finished", "slices", slices)
	return slices, nil
}
