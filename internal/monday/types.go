package monday

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"
)

type Record = map[string]any

// State is the persisted progress of one stream: cursor field name to the
// highest value seen, plus a nested mapping per parent stream.
type State map[string]any

func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	out := make(State, len(s))
	for k, v := range s {
		if nested, ok := v.(map[string]any); ok {
			out[k] = maps.Clone(nested)
			continue
		}
		if nested, ok := v.(State); ok {
			out[k] = nested.Clone()
			continue
		}
		out[k] = v
	}
	return out
}

func (s State) Nested(key string) State {
	switch v := s[key].(type) {
	case State:
		return v.Clone()
	case map[string]any:
		return State(maps.Clone(v))
	default:
		return State{}
	}
}

type SyncMode string

const (
	FullRefresh SyncMode = "full_refresh"
	Incremental SyncMode = "incremental"
)

func ParseSyncMode(value string) (SyncMode, error) {
	switch SyncMode(value) {
	case FullRefresh, Incremental:
		return SyncMode(value), nil
	default:
		return "", fmt.Errorf("sync mode must be %q or %q, got %q", FullRefresh, Incremental, value)
	}
}

// Slice is one unit of work: a partition (usually {"ids": [...]}) and a
// cursor slice (only the activity log time window uses it).
type Slice struct {
	Partition   map[string]any
	CursorSlice map[string]any
}

func (s Slice) Empty() bool {
	return len(s.Partition) == 0 && len(s.CursorSlice) == 0
}

func (s Slice) IDs() ([]any, bool) {
	ids, ok := s.Partition["ids"].([]any)
	return ids, ok && len(ids) > 0
}

func (s Slice) Get(key string) (any, bool) {
	if v, ok := s.Partition[key]; ok {
		return v, true
	}
	v, ok := s.CursorSlice[key]
	return v, ok
}

// PageToken is the continuation handed from a pagination strategy to the
// next request. Page walks boards; SubPage (page-based) or Cursor
// (cursor-based) walks the items of the current board.
type PageToken struct {
	Page    int
	SubPage int
	Cursor  string
}

func (t PageToken) String() string {
	if t.Cursor != "" {
		return fmt.Sprintf("(%d, %q)", t.Page, t.Cursor)
	}
	return fmt.Sprintf("(%d, %d)", t.Page, t.SubPage)
}

// truthy mirrors how the API payloads treat empty values: nil, "", 0,
// false and empty collections all count as absent.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case json.Number:
		return val != "" && val != "0"
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	case State:
		return len(val) > 0
	default:
		return true
	}
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int64:
		return val, true
	case float64:
		if val == float64(int64(val)) {
			return int64(val), true
		}
		return 0, false
	case json.Number:
		n, err := val.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// compareCursor orders two cursor values. Numbers compare numerically,
// strings lexically, anything else by its printed form.
func compareCursor(a, b any) int {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	return strings.Compare(as, bs)
}
