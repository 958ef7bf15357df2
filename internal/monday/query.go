package monday

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Arg is one GraphQL argument. A nil Value is kept (so callers can tell
// the key was supplied) but never rendered.
type Arg struct {
	Key   string
	Value any
}

type Args []Arg

func (a Args) Has(key string) bool {
	for _, arg := range a {
		if arg.Key == key {
			return true
		}
	}
	return false
}

// With returns a copy of a with key set, replacing an existing value in
// place or appending a new one.
func (a Args) With(key string, value any) Args {
	out := make(Args, len(a), len(a)+1)
	copy(out, a)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = value
			return out
		}
	}
	return append(out, Arg{Key: key, Value: value})
}

func (a Args) String() string {
	parts := make([]string, 0, len(a))
	for _, arg := range a {
		if arg.Value == nil {
			continue
		}
		if arg.Key == "fromt" {
			// "from" is reserved in the client's argument names.
			parts = append(parts, fmt.Sprintf("from:%q", formatValue(arg.Value)))
			continue
		}
		parts = append(parts, arg.Key+":"+formatValue(arg.Value))
	}
	return strings.Join(parts, ",")
}

// Parens renders the arguments wrapped in parentheses, or nothing when
// every value is nil.
func (a Args) Parens() string {
	if s := a.String(); s != "" {
		return "(" + s + ")"
	}
	return ""
}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		return formatList(len(val), func(i int) any { return val[i] })
	case []int:
		return formatList(len(val), func(i int) any { return val[i] })
	case []int64:
		return formatList(len(val), func(i int) any { return val[i] })
	case []string:
		return formatList(len(val), func(i int) any { return val[i] })
	default:
		return fmt.Sprint(val)
	}
}

func formatList(n int, at func(int) any) string {
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if s, ok := at(i).(string); ok {
			items = append(items, strconv.Quote(s))
			continue
		}
		items = append(items, formatValue(at(i)))
	}
	return "[" + strings.Join(items, ", ") + "]"
}

var displayValueFragments = []string{
	"... on MirrorValue{display_value}",
	"... on BoardRelationValue{display_value}",
	"... on DependencyValue{display_value}",
}

// QueryBuilder renders GraphQL selections from a field schema. It holds
// only the connector config and is safe to reuse across calls.
type QueryBuilder struct {
	config Config
}

func NewQueryBuilder(config Config) QueryBuilder {
	return QueryBuilder{config: config}
}

// Build renders object(args){fields} for schema, recursing into nested
// properties.
func (b QueryBuilder) Build(object string, schema FieldSchema, args Args) string {
	fields := make([]string, 0, len(schema)+len(displayValueFragments))
	for _, field := range schema {
		if len(field.Children) > 0 {
			fields = append(fields, b.Build(field.Name, field.Children, nil))
			continue
		}
		fields = append(fields, field.Name)
	}

	if object == "boards" {
		args = b.withBoardIDs(args)
	}

	arguments := args.Parens()

	if object == "column_values" {
		fields = removeField(fields, "display_value")
		fields = append(fields, displayValueFragments...)
	}

	selection := strings.Join(fields, ",")
	switch object {
	case "items_page", "next_items_page":
		return fmt.Sprintf("%s%s{cursor,items{%s}}", object, arguments, selection)
	default:
		return fmt.Sprintf("%s%s{%s}", object, arguments, selection)
	}
}

// ItemsQuery renders the board-scoped items query. Without a cursor it
// asks one board for its first items page; with one it continues that
// board through next_items_page.
func (b QueryBuilder) ItemsQuery(schema FieldSchema, cursor string, nestedLimit any, args Args) string {
	if cursor != "" {
		return b.Build("next_items_page", schema, Args{{"limit", nestedLimit}, {"cursor", strconv.Quote(cursor)}})
	}
	query := b.Build("items_page", schema, Args{{"limit", nestedLimit}})
	return fmt.Sprintf("boards%s{%s}", b.withBoardIDs(args).Parens(), query)
}

// ItemsIncrementalQuery renders a flat items query for ids that were
// collected from the parent stream.
func (b QueryBuilder) ItemsIncrementalQuery(schema FieldSchema, ids any, nestedLimit any, args Args) string {
	args = args.With("limit", nestedLimit).With("ids", ids)
	return b.Build("items", schema, args)
}

// TeamsQuery keeps the teams query cheap when teams_limit is configured.
func (b QueryBuilder) TeamsQuery(schema FieldSchema, args Args) (string, error) {
	limit, ok, err := b.config.TeamsLimit()
	if err != nil {
		return "", err
	}
	if !ok {
		return b.Build("teams", schema, args), nil
	}
	return fmt.Sprintf("teams%s{id,name,picture_url,users(limit:%d){id}}", args.Parens(), limit), nil
}

// ActivityLogsQuery renders board-scoped activity logs created after
// startTime (Unix seconds). A start time of "1" means no lower bound.
func (b QueryBuilder) ActivityLogsQuery(schema FieldSchema, startTime any, subPage any, nestedLimit any, args Args) (string, error) {
	var from any
	if startTime != nil && formatValue(startTime) != "1" {
		seconds, ok := toInt64(startTime)
		if !ok {
			return "", fmt.Errorf("activity logs start_time %v is not a unix timestamp", startTime)
		}
		from = time.Unix(seconds, 0).UTC().Format("2006-01-02T15:04:05Z")
	}
	query := b.Build("activity_logs", schema, Args{{"limit", nestedLimit}, {"page", subPage}, {"fromt", from}})
	return fmt.Sprintf("boards%s{%s}", b.withBoardIDs(args).Parens(), query), nil
}

func (b QueryBuilder) withBoardIDs(args Args) Args {
	ids, ok := b.config.BoardIDs()
	if !ok || args.Has("ids") {
		return args
	}
	return args.With("ids", ids)
}

func removeField(fields []string, name string) []string {
	for i, f := range fields {
		if f == name {
			return append(fields[:i:i], fields[i+1:]...)
		}
	}
	return fields
}
