package monday

import (
	"fmt"
	"reflect"
)

// Config is the connector configuration as the user supplied it. Values
// keep their decoded types so that type checks surface misconfiguration.
type Config map[string]any

func (c Config) BoardIDs() (any, bool) {
	v, ok := c["board_ids"]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// TeamsLimit returns the cost-saving users limit for the teams query. A
// present but non-integer value is a fatal configuration error.
func (c Config) TeamsLimit() (int, bool, error) {
	v, ok := c["teams_limit"]
	if !ok || !truthy(v) {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return n, true, nil
	case int64:
		return int(n), true, nil
	case int32:
		return int(n), true, nil
	default:
		return 0, false, fmt.Errorf("%w: teams_limit %v (%s) is not of type int", ErrInvalidConfig, v, reflect.TypeOf(v))
	}
}
