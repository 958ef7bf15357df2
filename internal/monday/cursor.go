package monday

import (
	"context"
	"fmt"
	"iter"
	"maps"
)

// Cursor tracks one stream's sync progress and cuts its work into slices.
// A cursor belongs to a single sequential read.
type Cursor interface {
	CursorField() string
	SetInitialState(state State)
	StreamSlices(ctx context.Context) iter.Seq2[Slice, error]
	CloseSlice(slice Slice, mostRecent Record)
	State() State
}

// IsGreaterThanOrEqual reports whether first's cursor value is at least
// second's. A missing value on first never wins; a missing value on
// second always loses.
func IsGreaterThanOrEqual(field string, first, second map[string]any) bool {
	a, b := first[field], second[field]
	switch {
	case truthy(a) && truthy(b):
		return compareCursor(a, b) >= 0
	case truthy(a):
		return true
	default:
		return false
	}
}

// SingleSliceCursor does not partition work: it hands out one empty slice
// and keeps the highest cursor value seen.
type SingleSliceCursor struct {
	field string
	state State
}

func NewSingleSliceCursor(cursorField string) *SingleSliceCursor {
	return &SingleSliceCursor{field: cursorField, state: State{}}
}

func (c *SingleSliceCursor) CursorField() string { return c.field }

func (c *SingleSliceCursor) SetInitialState(state State) {
	c.state = State{}
	if v := state[c.field]; truthy(v) {
		c.state[c.field] = v
	}
}

func (c *SingleSliceCursor) StreamSlices(context.Context) iter.Seq2[Slice, error] {
	return func(yield func(Slice, error) bool) {
		yield(Slice{}, nil)
	}
}

func (c *SingleSliceCursor) CloseSlice(_ Slice, mostRecent Record) {
	c.advance(mostRecent)
}

func (c *SingleSliceCursor) State() State {
	return c.state.Clone()
}

// advance folds mostRecent into the state and returns the resulting
// cursor value, or false when neither side has one.
func (c *SingleSliceCursor) advance(mostRecent Record) (any, bool) {
	latest := mostRecent
	if IsGreaterThanOrEqual(c.field, c.state, mostRecent) {
		latest = c.state
	}
	v, ok := latest[c.field]
	if !ok || !truthy(v) {
		return nil, false
	}
	c.state[c.field] = v
	return v, true
}

// TimeSliceCursor is a single-slice cursor whose slice carries the stored
// cursor as start_time, "1" meaning from the beginning.
type TimeSliceCursor struct {
	*SingleSliceCursor
}

func NewTimeSliceCursor(cursorField string) *TimeSliceCursor {
	return &TimeSliceCursor{SingleSliceCursor: NewSingleSliceCursor(cursorField)}
}

func (c *TimeSliceCursor) StreamSlices(context.Context) iter.Seq2[Slice, error] {
	start := any("1")
	if v := c.state[c.field]; truthy(v) {
		start = v
	}
	return func(yield func(Slice, error) bool) {
		yield(Slice{CursorSlice: map[string]any{"start_time": start}}, nil)
	}
}

// ParentStream is the substream slicer's handle on the stream it reads ids
// from. State and SetState are the only way the slicer touches the
// parent's progress.
type ParentStream interface {
	Name() string
	CursorField() string
	SupportsIncremental() bool
	State() State
	SetState(state State)
	StreamSlices(ctx context.Context, mode SyncMode, cursorField string, state State) iter.Seq2[Slice, error]
	ReadRecords(ctx context.Context, mode SyncMode, cursorField string, slice Slice, state State) iter.Seq2[Record, error]
}

type ParentStreamConfig struct {
	Stream         ParentStream
	ParentKey      string
	PartitionField string
}

type SubstreamOptions struct {
	CursorField         string
	Parents             []ParentStreamConfig
	NestedItemsPerPage  int
	ParentCompleteFetch bool
}

// SubstreamSlicer slices a child stream by the ids its parent stream
// reports since the parent's last cursor.
type SubstreamSlicer struct {
	*SingleSliceCursor

	parent            ParentStreamConfig
	parentName        string
	parentCursorField string
	parentMode        SyncMode
	perPage           int
	completeFetch     bool
}

func NewSubstreamSlicer(opts SubstreamOptions) (*SubstreamSlicer, error) {
	if len(opts.Parents) == 0 || opts.Parents[0].Stream == nil {
		return nil, ErrNoParentStream
	}
	if opts.NestedItemsPerPage <= 0 {
		return nil, fmt.Errorf("%w: nested_items_per_page must be positive, got %d", ErrInvalidConfig, opts.NestedItemsPerPage)
	}
	parent := opts.Parents[0]
	if parent.PartitionField == "" {
		parent.PartitionField = "ids"
	}
	mode := FullRefresh
	if parent.Stream.SupportsIncremental() {
		mode = Incremental
	}
	return &SubstreamSlicer{
		SingleSliceCursor: NewSingleSliceCursor(opts.CursorField),
		parent:            parent,
		parentName:        parent.Stream.Name(),
		parentCursorField: parent.Stream.CursorField(),
		parentMode:        mode,
		perPage:           opts.NestedItemsPerPage,
		completeFetch:     opts.ParentCompleteFetch,
	}, nil
}

func (s *SubstreamSlicer) SetInitialState(state State) {
	s.SingleSliceCursor.SetInitialState(state)
	parentState := state.Nested(s.parentName)
	if v := parentState[s.parentCursorField]; truthy(v) {
		s.state[s.parentName] = map[string]any{s.parentCursorField: v}
	}
}

func (s *SubstreamSlicer) CloseSlice(_ Slice, mostRecent Record) {
	latest, ok := s.advance(mostRecent)
	if !ok {
		return
	}
	parentState := s.parent.Stream.State()
	if len(parentState) == 0 {
		parentState = State{s.parentCursorField: latest}
	}
	s.state[s.parentName] = map[string]any(maps.Clone(parentState))
}

func (s *SubstreamSlicer) StreamSlices(ctx context.Context) iter.Seq2[Slice, error] {
	slices := s.readParentStream(ctx, s.parentMode, s.parentCursorField, s.state.Nested(s.parentName))
	if !s.completeFetch {
		return slices
	}
	return func(yield func(Slice, error) bool) {
		var all []Slice
		for slice, err := range slices {
			if err != nil {
				yield(Slice{}, err)
				return
			}
			all = append(all, slice)
		}
		for _, slice := range all {
			if !yield(slice, nil) {
				return
			}
		}
	}
}

func (s *SubstreamSlicer) readParentStream(ctx context.Context, mode SyncMode, cursorField string, state State) iter.Seq2[Slice, error] {
	return func(yield func(Slice, error) bool) {
		s.parent.Stream.SetState(state)

		// No parent cursor yet: fetch the child stream unfiltered.
		if !truthy(state[s.parentCursorField]) {
			yield(Slice{}, nil)
			return
		}

		seen := map[string]struct{}{}
		var batch []any
		emit := func() bool {
			slice := Slice{Partition: map[string]any{s.parent.PartitionField: batch}}
			batch = nil
			return yield(slice, nil)
		}

		for parentSlice, err := range s.parent.Stream.StreamSlices(ctx, mode, cursorField, state) {
			if err != nil {
				yield(Slice{}, fmt.Errorf("read %s slices: %w", s.parentName, err))
				return
			}
			for record, err := range s.parent.Stream.ReadRecords(ctx, mode, cursorField, parentSlice, state) {
				if err != nil {
					yield(Slice{}, fmt.Errorf("read %s records: %w", s.parentName, err))
					return
				}
				id, ok := ParentKeyValue(record, s.parent.ParentKey)
				if !ok || id == nil {
					continue
				}
				key := fmt.Sprint(id)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				batch = append(batch, id)
				if len(batch) == s.perPage && !emit() {
					return
				}
			}
		}
		if len(batch) > 0 {
			emit()
		}
	}
}
