package monday

import (
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"text/template"

	"github.com/tidwall/gjson"
)

type Extractor interface {
	ExtractRecords(resp *Response) iter.Seq2[Record, error]
}

// ActivityExtractor flattens boards[].activity_logs[] and lifts the ids
// buried in each log's JSON data string onto the record.
type ActivityExtractor struct{}

func (e ActivityExtractor) ExtractRecords(resp *Response) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		bodies, err := JSONDecoder{}.Decode(resp)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, body := range bodies {
			data, _ := body["data"].(map[string]any)
			boards, _ := data["boards"].([]any)
			for _, b := range boards {
				board, ok := b.(map[string]any)
				if !ok {
					continue
				}
				logs, _ := board["activity_logs"].([]any)
				for _, l := range logs {
					record, ok := activityRecord(l)
					if !ok {
						continue
					}
					if !yield(record, nil) {
						return
					}
				}
			}
		}
	}
}

func activityRecord(v any) (Record, bool) {
	log, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	raw, _ := log["data"].(string)
	var data map[string]any
	if raw != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&data); err != nil {
			return nil, false
		}
	}

	createdAt, ok := toInt64(log["created_at"])
	if !ok || !truthy(log["created_at"]) {
		return nil, false
	}

	record := make(Record, len(log)+2)
	for k, val := range log {
		record[k] = val
	}
	// created_at counts 100ns ticks; the cursor keeps whole seconds.
	record["created_at_int"] = createdAt / 10_000_000

	switch log["entity"] {
	case "pulse":
		if truthy(data["pulse_id"]) {
			record["pulse_id"] = data["pulse_id"]
		}
	case "board":
		if truthy(data["board_id"]) {
			record["board_id"] = data["board_id"]
		}
	}
	return record, true
}

// PathExtractor reads records from FieldPath in the response body, falling
// back to PaginationPath when the primary path holds nothing. Segments may
// be templates over the connector config, e.g. "{{ .config.root }}"; a
// "*" segment matches every element of a list, and the matches are
// flattened one level.
type PathExtractor struct {
	FieldPath      []string
	PaginationPath []string
	Config         Config
	Logger         *slog.Logger
}

func (e PathExtractor) ExtractRecords(resp *Response) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		bodies, err := JSONDecoder{}.Decode(resp)
		if err != nil {
			yield(nil, err)
			return
		}
		if len(bodies) == 0 {
			return
		}
		primary, err := e.resolve(e.FieldPath)
		if err != nil {
			yield(nil, err)
			return
		}
		found := false
		for record, err := range e.extract(resp.Body, primary) {
			if err != nil {
				yield(nil, err)
				return
			}
			found = true
			if !yield(record, nil) {
				return
			}
		}
		if found || len(e.PaginationPath) == 0 {
			return
		}
		fallback, err := e.resolve(e.PaginationPath)
		if err != nil {
			yield(nil, err)
			return
		}
		for record, err := range e.extract(resp.Body, fallback) {
			if !yield(record, err) || err != nil {
				return
			}
		}
	}
}

func (e PathExtractor) extract(body []byte, path []string) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		var matched gjson.Result
		if len(path) == 0 {
			matched = gjson.ParseBytes(body)
		} else {
			matched = gjson.GetBytes(body, jsonPath(path))
		}
		if !matched.Exists() {
			return
		}

		extracted := []gjson.Result{matched}
		if matched.IsArray() {
			extracted = matched.Array()
		}
		for _, item := range extracted {
			if item.Type == gjson.Null {
				e.logger().Warn("Record with null value received", "errors", gjson.GetBytes(body, "errors").Raw)
				break
			}
		}

		for _, item := range extracted {
			if !item.IsObject() {
				continue
			}
			record, err := decodeRecord(item.Raw)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

// decodeRecord keeps numbers as json.Number, like the rest of the response.
func decodeRecord(raw string) (Record, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var record Record
	if err := dec.Decode(&record); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return record, nil
}

// jsonPath turns path segments into a gjson path. Literal segments are
// escaped; "*" becomes a list query whose results are flattened.
func jsonPath(path []string) string {
	parts := make([]string, len(path))
	wildcard := false
	for i, segment := range path {
		if segment == "*" {
			parts[i] = "#"
			wildcard = true
			continue
		}
		parts[i] = gjson.Escape(segment)
	}
	out := strings.Join(parts, ".")
	if wildcard {
		out += "|@flatten"
	}
	return out
}

func (e PathExtractor) resolve(path []string) ([]string, error) {
	out := make([]string, 0, len(path))
	for _, segment := range path {
		if !strings.Contains(segment, "{{") {
			out = append(out, segment)
			continue
		}
		tmpl, err := template.New("path").Option("missingkey=zero").Parse(segment)
		if err != nil {
			return nil, fmt.Errorf("parse path segment %q: %w", segment, err)
		}
		var b strings.Builder
		if err := tmpl.Execute(&b, map[string]any{"config": map[string]any(e.Config)}); err != nil {
			return nil, fmt.Errorf("render path segment %q: %w", segment, err)
		}
		out = append(out, b.String())
	}
	return out, nil
}

func (e PathExtractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// ParentKeyValue reads a possibly nested ("a/b") key from a parent record.
func ParentKeyValue(record Record, key string) (any, bool) {
	path := strings.Split(key, "/")
	var cur any = map[string]any(record)
	for _, segment := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := m[segment]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}
