package monday

import "fmt"

const APIVersion = "2024-10"

// StreamKind selects how a stream's request is shaped. It is resolved once
// from the stream name when the requester is built.
type StreamKind int

const (
	KindGeneric StreamKind = iota
	KindBoards
	KindItems
	KindTeams
	KindActivityLogs
)

func KindOf(stream string) StreamKind {
	switch stream {
	case "boards":
		return KindBoards
	case "items":
		return KindItems
	case "teams":
		return KindTeams
	case "activity_logs":
		return KindActivityLogs
	default:
		return KindGeneric
	}
}

func (k StreamKind) String() string {
	switch k {
	case KindBoards:
		return "boards"
	case KindItems:
		return "items"
	case KindTeams:
		return "teams"
	case KindActivityLogs:
		return "activity_logs"
	default:
		return "generic"
	}
}

type RequesterOptions struct {
	Name        string
	Mode        SyncMode
	Limit       int
	NestedLimit int
	Manifest    *Manifest
	Config      Config
}

type Requester struct {
	name        string
	kind        StreamKind
	mode        SyncMode
	limit       int
	nestedLimit int
	manifest    *Manifest
	builder     QueryBuilder
}

func NewRequester(opts RequesterOptions) (*Requester, error) {
	if opts.Manifest == nil {
		return nil, fmt.Errorf("requester %s: no manifest", opts.Name)
	}
	if _, ok := opts.Manifest.Schema(opts.Name); !ok {
		return nil, fmt.Errorf("requester %s: %w: no schema in %s", opts.Name, ErrNotFound, opts.Manifest.Path)
	}
	mode := opts.Mode
	if mode == "" {
		mode = FullRefresh
	}
	return &Requester{
		name:        opts.Name,
		kind:        KindOf(opts.Name),
		mode:        mode,
		limit:       opts.Limit,
		nestedLimit: opts.NestedLimit,
		manifest:    opts.Manifest,
		builder:     NewQueryBuilder(opts.Config),
	}, nil
}

func (r *Requester) Name() string     { return r.name }
func (r *Requester) Kind() StreamKind { return r.kind }
func (r *Requester) Mode() SyncMode   { return r.mode }

func (r *Requester) RequestHeaders() map[string]string {
	return map[string]string{"API-Version": APIVersion}
}

// RequestParams builds the GraphQL request for one page of slice. token is
// nil for the first page.
func (r *Requester) RequestParams(token *PageToken, slice Slice) (map[string]string, error) {
	schema, err := r.manifest.Properties(r.name)
	if err != nil {
		return nil, err
	}

	var page, subPage any
	var cursor string
	if token != nil {
		page = optional(token.Page)
		subPage = optional(token.SubPage)
		cursor = token.Cursor
	}
	limit := optional(r.limit)
	nested := optional(r.nestedLimit)

	var query string
	switch r.kind {
	case KindBoards:
		args := Args{}
		if !slice.Empty() && r.mode == Incremental {
			args = append(args, Arg{Key: "ids", Value: slice.Partition["ids"]})
		}
		args = append(args, Arg{Key: "limit", Value: limit}, Arg{Key: "page", Value: page})
		query = r.builder.Build(r.name, schema, args)
	case KindItems:
		args := Args{{"limit", limit}, {"page", page}}
		if ids, ok := slice.IDs(); ok && r.mode == Incremental {
			query = r.builder.ItemsIncrementalQuery(schema, ids, nested, args)
			break
		}
		query = r.builder.ItemsQuery(schema, cursor, nested, args)
	case KindTeams:
		query, err = r.builder.TeamsQuery(schema, Args{{"limit", limit}, {"page", page}})
	case KindActivityLogs:
		start, _ := slice.Get("start_time")
		query, err = r.builder.ActivityLogsQuery(schema, start, subPage, nested, Args{{"limit", limit}, {"page", page}})
	default:
		query = r.builder.Build(r.name, schema, Args{{"limit", limit}, {"page", page}})
	}
	if err != nil {
		return nil, fmt.Errorf("build %s query: %w", r.name, err)
	}
	return map[string]string{"query": "query{" + query + "}"}, nil
}

func optional(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
