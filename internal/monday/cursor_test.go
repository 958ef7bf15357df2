package monday

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParent struct {
	name    string
	cursor  string
	records []Record
	err     error
	state   State
	reads   int
}

func (p *fakeParent) Name() string              { return p.name }
func (p *fakeParent) CursorField() string       { return p.cursor }
func (p *fakeParent) SupportsIncremental() bool { return true }
func (p *fakeParent) State() State              { return p.state.Clone() }
func (p *fakeParent) SetState(state State)      { p.state = state.Clone() }

func (p *fakeParent) StreamSlices(context.Context, SyncMode, string, State) iter.Seq2[Slice, error] {
	return func(yield func(Slice, error) bool) {
		yield(Slice{}, nil)
	}
}

func (p *fakeParent) ReadRecords(context.Context, SyncMode, string, Slice, State) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		p.reads++
		for _, r := range p.records {
			if !yield(r, nil) {
				return
			}
		}
		if p.err != nil {
			yield(nil, p.err)
		}
	}
}

func slicesOf(t *testing.T, seq iter.Seq2[Slice, error]) []Slice {
	t.Helper()
	var out []Slice
	for s, err := range seq {
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func TestIsGreaterThanOrEqual(t *testing.T) {
	assert.True(t, IsGreaterThanOrEqual("c", map[string]any{"c": 5}, map[string]any{"c": 5}))
	assert.False(t, IsGreaterThanOrEqual("c", map[string]any{"c": 4}, map[string]any{"c": 5}))
	assert.True(t, IsGreaterThanOrEqual("c", map[string]any{"c": 4}, map[string]any{}))
	assert.False(t, IsGreaterThanOrEqual("c", map[string]any{}, map[string]any{"c": 1}))
	assert.True(t, IsGreaterThanOrEqual("c", map[string]any{"c": "b"}, map[string]any{"c": "a"}))
}

func TestSingleSliceCursorNeverRegresses(t *testing.T) {
	c := NewSingleSliceCursor("updated_at_int")
	c.SetInitialState(State{"updated_at_int": 10, "other": true})
	assert.Equal(t, State{"updated_at_int": 10}, c.State())

	slices := slicesOf(t, c.StreamSlices(context.Background()))
	require.Len(t, slices, 1)
	assert.True(t, slices[0].Empty())

	c.CloseSlice(Slice{}, Record{"updated_at_int": 12})
	assert.Equal(t, 12, c.State()["updated_at_int"])

	c.CloseSlice(Slice{}, Record{"updated_at_int": 11})
	assert.Equal(t, 12, c.State()["updated_at_int"])

	c.CloseSlice(Slice{}, Record{})
	c.CloseSlice(Slice{}, nil)
	assert.Equal(t, 12, c.State()["updated_at_int"])
}

func TestTimeSliceCursorStartTime(t *testing.T) {
	c := NewTimeSliceCursor("created_at_int")
	slices := slicesOf(t, c.StreamSlices(context.Background()))
	require.Len(t, slices, 1)
	assert.Equal(t, "1", slices[0].CursorSlice["start_time"])

	c.SetInitialState(State{"created_at_int": int64(1700000000)})
	slices = slicesOf(t, c.StreamSlices(context.Background()))
	assert.Equal(t, int64(1700000000), slices[0].CursorSlice["start_time"])
}

func newSlicer(t *testing.T, parent *fakeParent, perPage int, complete bool) *SubstreamSlicer {
	t.Helper()
	s, err := NewSubstreamSlicer(SubstreamOptions{
		CursorField:         "updated_at_int",
		Parents:             []ParentStreamConfig{{Stream: parent, ParentKey: "pulse_id"}},
		NestedItemsPerPage:  perPage,
		ParentCompleteFetch: complete,
	})
	require.NoError(t, err)
	return s
}

func TestSubstreamSlicerBatchesParentIDs(t *testing.T) {
	for _, complete := range []bool{false, true} {
		parent := &fakeParent{
			name:   "activity_logs",
			cursor: "created_at_int",
			records: []Record{
				{"pulse_id": 1}, {"pulse_id": 2}, {"pulse_id": 2}, {"pulse_id": nil},
				{"board_id": 8}, {"pulse_id": 3}, {"pulse_id": 4}, {"pulse_id": 1}, {"pulse_id": 5},
			},
		}
		s := newSlicer(t, parent, 2, complete)
		s.SetInitialState(State{"updated_at_int": 5, "activity_logs": map[string]any{"created_at_int": 10}})

		slices := slicesOf(t, s.StreamSlices(context.Background()))
		require.Len(t, slices, 3)
		assert.Equal(t, []any{1, 2}, slices[0].Partition["ids"])
		assert.Equal(t, []any{3, 4}, slices[1].Partition["ids"])
		assert.Equal(t, []any{5}, slices[2].Partition["ids"])
		assert.Equal(t, State{"created_at_int": 10}, parent.State())
	}
}

func TestSubstreamSlicerWithoutParentCursor(t *testing.T) {
	parent := &fakeParent{name: "activity_logs", cursor: "created_at_int", records: []Record{{"pulse_id": 1}}}
	s := newSlicer(t, parent, 2, false)
	s.SetInitialState(State{"updated_at_int": 5})

	slices := slicesOf(t, s.StreamSlices(context.Background()))
	require.Len(t, slices, 1)
	assert.True(t, slices[0].Empty())
	assert.Zero(t, parent.reads)
}

func TestSubstreamSlicerNoParentIDs(t *testing.T) {
	for _, complete := range []bool{false, true} {
		parent := &fakeParent{
			name:    "activity_logs",
			cursor:  "created_at_int",
			records: []Record{{"board_id": 8}, {"board_id": 9}, {"pulse_id": nil}},
		}
		s := newSlicer(t, parent, 2, complete)
		s.SetInitialState(State{"activity_logs": map[string]any{"created_at_int": 10}})

		slices := slicesOf(t, s.StreamSlices(context.Background()))
		assert.Empty(t, slices)
		assert.NotZero(t, parent.reads)
	}
}

func TestSubstreamSlicerStopsEarly(t *testing.T) {
	parent := &fakeParent{name: "activity_logs", cursor: "created_at_int", records: []Record{{"pulse_id": 1}, {"pulse_id": 2}, {"pulse_id": 3}}}
	s := newSlicer(t, parent, 1, false)
	s.SetInitialState(State{"activity_logs": map[string]any{"created_at_int": 1}})

	for slice := range s.StreamSlices(context.Background()) {
		assert.Equal(t, []any{1}, slice.Partition["ids"])
		break
	}
}

func TestSubstreamSlicerParentError(t *testing.T) {
	boom := errors.New("boom")
	parent := &fakeParent{name: "activity_logs", cursor: "created_at_int", records: []Record{{"pulse_id": 1}}, err: boom}
	s := newSlicer(t, parent, 5, true)
	s.SetInitialState(State{"activity_logs": map[string]any{"created_at_int": 1}})

	var gotErr error
	for _, err := range s.StreamSlices(context.Background()) {
		if err != nil {
			gotErr = err
		}
	}
	require.ErrorIs(t, gotErr, boom)
}

func TestSubstreamSlicerCloseSlice(t *testing.T) {
	parent := &fakeParent{name: "activity_logs", cursor: "created_at_int"}
	s := newSlicer(t, parent, 2, false)
	s.SetInitialState(State{})

	s.CloseSlice(Slice{}, Record{"updated_at_int": 20})
	assert.Equal(t, State{"updated_at_int": 20, "activity_logs": map[string]any{"created_at_int": 20}}, s.State())

	parent.SetState(State{"created_at_int": 99})
	s.CloseSlice(Slice{}, Record{"updated_at_int": 15})
	assert.Equal(t, State{"updated_at_int": 20, "activity_logs": map[string]any{"created_at_int": 99}}, s.State())
}

func TestNewSubstreamSlicerValidation(t *testing.T) {
	_, err := NewSubstreamSlicer(SubstreamOptions{CursorField: "updated_at_int", NestedItemsPerPage: 1})
	require.ErrorIs(t, err, ErrNoParentStream)

	_, err = NewSubstreamSlicer(SubstreamOptions{
		Parents: []ParentStreamConfig{{Stream: &fakeParent{name: "p"}, ParentKey: "id"}},
	})
	require.ErrorIs(t, err, ErrInvalidConfig)
}
