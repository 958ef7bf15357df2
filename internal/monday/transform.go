package monday

import (
	"strings"
	"time"
)

// Transformation rewrites a record in place after extraction.
type Transformation interface {
	Transform(record Record)
}

// TransformColumnValues fills each column value's empty text from its
// display_value. Mirror and relation columns only report the latter.
type TransformColumnValues struct{}

func (TransformColumnValues) Transform(record Record) {
	values, ok := record["column_values"].([]any)
	if !ok {
		return
	}
	for _, v := range values {
		cv, ok := v.(map[string]any)
		if !ok {
			continue
		}
		display := cv["display_value"]
		if !truthy(display) || truthy(cv["text"]) {
			continue
		}
		cv["text"] = display
	}
}

// AddUpdatedAtInt sets updated_at_int (Unix seconds) from an RFC 3339
// updated_at. Records without a parseable updated_at are left alone.
type AddUpdatedAtInt struct{}

func (AddUpdatedAtInt) Transform(record Record) {
	raw, ok := record["updated_at"].(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return
	}
	record["updated_at_int"] = ts.Unix()
}

// ApplyTransformations runs each transformation over record in order.
func ApplyTransformations(record Record, transformations ...Transformation) Record {
	for _, t := range transformations {
		t.Transform(record)
	}
	return record
}
