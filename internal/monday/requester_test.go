package monday

import (
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

func testManifest(t *testing.T) *Manifest {
	t.Helper()
	m, err := LoadManifest("testdata/manifest.yaml")
	require.NoError(t, err)
	return m
}

func TestRequestParamsGolden(t *testing.T) {
	manifest := testManifest(t)

	cases := []struct {
		name   string
		stream string
		mode   SyncMode
		limit  int
		config Config
		token  *PageToken
		slice  Slice
	}{
		{
			name:   "boards_full_refresh",
			stream: "boards",
			limit:  10,
			token:  &PageToken{Page: 1},
			slice:  Slice{Partition: map[string]any{"ids": []any{3, 4}}},
		},
		{
			name:   "boards_incremental_ids",
			stream: "boards",
			mode:   Incremental,
			limit:  10,
			token:  &PageToken{Page: 1},
			slice:  Slice{Partition: map[string]any{"ids": []any{3, 4}}},
		},
		{
			name:   "items_first_page",
			stream: "items",
			limit:  1,
			config: Config{"board_ids": []any{7}},
		},
		{
			name:   "items_next_page",
			stream: "items",
			limit:  1,
			token:  &PageToken{Page: 1, Cursor: "abc"},
		},
		{
			name:   "items_incremental_ids",
			stream: "items",
			mode:   Incremental,
			limit:  1,
			token:  &PageToken{Page: 1, SubPage: 1},
			slice:  Slice{Partition: map[string]any{"ids": []any{5, 6}}},
		},
		{
			name:   "activity_logs_from_start",
			stream: "activity_logs",
			mode:   Incremental,
			limit:  1,
			slice:  Slice{CursorSlice: map[string]any{"start_time": "1"}},
		},
		{
			name:   "activity_logs_since",
			stream: "activity_logs",
			mode:   Incremental,
			limit:  1,
			token:  &PageToken{Page: 2, SubPage: 3},
			slice:  Slice{CursorSlice: map[string]any{"start_time": int64(1700000000)}},
		},
		{
			name:   "teams_limited",
			stream: "teams",
			limit:  10,
			config: Config{"teams_limit": 5},
			token:  &PageToken{Page: 1},
		},
		{
			name:   "users_generic",
			stream: "users",
			limit:  10,
			token:  &PageToken{Page: 2},
		},
	}

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			nested := 20
			if tc.stream == "activity_logs" {
				nested = 100
			}
			r, err := NewRequester(RequesterOptions{
				Name:        tc.stream,
				Mode:        tc.mode,
				Limit:       tc.limit,
				NestedLimit: nested,
				Manifest:    manifest,
				Config:      tc.config,
			})
			require.NoError(t, err)

			params, err := r.RequestParams(tc.token, tc.slice)
			require.NoError(t, err)
			g.Assert(t, tc.name, []byte(params["query"]))
		})
	}
}

func TestRequestHeaders(t *testing.T) {
	r, err := NewRequester(RequesterOptions{Name: "users", Manifest: testManifest(t)})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"API-Version": "2024-10"}, r.RequestHeaders())
}

func TestNewRequesterResolvesKind(t *testing.T) {
	manifest := testManifest(t)
	for stream, kind := range map[string]StreamKind{
		"boards":        KindBoards,
		"items":         KindItems,
		"teams":         KindTeams,
		"activity_logs": KindActivityLogs,
		"users":         KindGeneric,
	} {
		r, err := NewRequester(RequesterOptions{Name: stream, Manifest: manifest})
		require.NoError(t, err)
		require.Equal(t, kind, r.Kind(), stream)
		require.Equal(t, FullRefresh, r.Mode())
	}
}

func TestNewRequesterUnknownStream(t *testing.T) {
	_, err := NewRequester(RequesterOptions{Name: "docs", Manifest: testManifest(t)})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRequestParamsTeamsLimitNotInt(t *testing.T) {
	r, err := NewRequester(RequesterOptions{
		Name:     "teams",
		Manifest: testManifest(t),
		Config:   Config{"teams_limit": "5"},
	})
	require.NoError(t, err)

	_, err = r.RequestParams(nil, Slice{})
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.Contains(t, err.Error(), "teams_limit 5 (string) is not of type int")
}
