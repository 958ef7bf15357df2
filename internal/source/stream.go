package source

import (
	"context"
	"iter"
	"log/slog"

	"github.com/duailibe/monday-source/internal/monday"
)

// Stream reads one resource page by page. It is also the handle a
// substream slicer holds on its parent.
type Stream struct {
	def        Definition
	api        monday.API
	requester  *monday.Requester
	paginator  monday.Paginator
	extractor  monday.Extractor
	transforms []monday.Transformation
	cursor     monday.Cursor
	logger     *slog.Logger
}

var _ monday.ParentStream = (*Stream)(nil)

func (s *Stream) Name() string              { return s.def.Name }
func (s *Stream) CursorField() string       { return s.def.CursorField }
func (s *Stream) SupportsIncremental() bool { return s.cursor != nil }

func (s *Stream) State() monday.State {
	if s.cursor == nil {
		return monday.State{}
	}
	return s.cursor.State()
}

func (s *Stream) SetState(state monday.State) {
	if s.cursor != nil {
		s.cursor.SetInitialState(state)
	}
}

func (s *Stream) StreamSlices(ctx context.Context, mode monday.SyncMode, _ string, state monday.State) iter.Seq2[monday.Slice, error] {
	if mode != monday.Incremental || s.cursor == nil {
		return func(yield func(monday.Slice, error) bool) {
			yield(monday.Slice{}, nil)
		}
	}
	s.cursor.SetInitialState(state)
	return s.cursor.StreamSlices(ctx)
}

// ReadRecords pages through one slice. In incremental mode the slice is
// closed on the cursor with the newest record once every page is read.
func (s *Stream) ReadRecords(ctx context.Context, mode monday.SyncMode, cursorField string, slice monday.Slice, _ monday.State) iter.Seq2[monday.Record, error] {
	if cursorField == "" {
		cursorField = s.def.CursorField
	}
	incremental := mode == monday.Incremental && s.cursor != nil

	return func(yield func(monday.Record, error) bool) {
		var token *monday.PageToken
		var current monday.PageToken
		if s.paginator != nil {
			current = s.paginator.Initial()
		}
		var mostRecent monday.Record
		pages := 0

		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			params, err := s.requester.RequestParams(token, slice)
			if err != nil {
				yield(nil, err)
				return
			}
			resp, err := s.api.Do(ctx, params, s.requester.RequestHeaders())
			if err != nil {
				yield(nil, err)
				return
			}
			pages++

			n := 0
			for record, err := range s.extractor.ExtractRecords(resp) {
				if err != nil {
					yield(nil, err)
					return
				}
				n++
				monday.ApplyTransformations(record, s.transforms...)
				if incremental && !monday.IsGreaterThanOrEqual(cursorField, mostRecent, record) {
					mostRecent = record
				}
				if !yield(record, nil) {
					return
				}
			}
			s.logger.Debug("page read", "page", token, "records", n)

			if s.paginator == nil {
				break
			}
			next, ok := s.paginator.Next(current, resp, n)
			if !ok {
				break
			}
			current = next
			token = &current
		}

		if incremental {
			s.cursor.CloseSlice(slice, mostRecent)
		}
		s.logger.Debug("slice read", "partition", slice.Partition, "pages", pages)
	}
}

// firstMatch yields the records of the first extractor that finds any.
type firstMatch []monday.Extractor

func (f firstMatch) ExtractRecords(resp *monday.Response) iter.Seq2[monday.Record, error] {
	return func(yield func(monday.Record, error) bool) {
		for _, e := range f {
			found := false
			for record, err := range e.ExtractRecords(resp) {
				if err != nil {
					yield(nil, err)
					return
				}
				found = true
				if !yield(record, nil) {
					return
				}
			}
			if found {
				return
			}
		}
	}
}
