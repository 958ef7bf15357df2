package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/duailibe/monday-source/internal/monday"
)

type stubAPI struct {
	body string
}

func (s stubAPI) Do(context.Context, map[string]string, map[string]string) (*monday.Response, error) {
	return &monday.Response{StatusCode: http.StatusOK, Body: []byte(s.body)}, nil
}

func (s stubAPI) Me(context.Context) (monday.User, error) {
	return monday.User{ID: "7", Name: "Ada"}, nil
}

func testDeps(t *testing.T, out, errOut *bytes.Buffer) Dependencies {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("MONDAY_API_TOKEN", "")
	return Dependencies{
		In:        bytes.NewBuffer(nil),
		Out:       out,
		Err:       errOut,
		Now:       func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
		NewClient: monday.NewClient,
		NewRunID:  func() string { return "run-1" },
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestStreamsJSON(t *testing.T) {
	var out, errOut bytes.Buffer
	deps := testDeps(t, &out, &errOut)

	code := ExecuteWith(deps, []string{"streams", "--json"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", code, errOut.String())
	}

	var payload []map[string]any
	if err := json.Unmarshal(out.Bytes(), &payload); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(payload) != 8 {
		t.Fatalf("expected 8 streams, got %d", len(payload))
	}
	if payload[2]["name"] != "items" || payload[2]["parent"] != "activity_logs" {
		t.Fatalf("unexpected items entry: %v", payload[2])
	}
}

func TestStreamsText(t *testing.T) {
	var out, errOut bytes.Buffer
	deps := testDeps(t, &out, &errOut)

	if code := ExecuteWith(deps, []string{"streams"}); code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", code, errOut.String())
	}
	if !strings.Contains(out.String(), "full_refresh,incremental") {
		t.Fatalf("expected sync modes in output: %s", out.String())
	}
}

func TestCheckUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var out, errOut bytes.Buffer
	deps := testDeps(t, &out, &errOut)
	cfg := writeConfig(t, "api_token: bad\napi_url: "+srv.URL+"\n")

	code := ExecuteWith(deps, []string{"check", "--config", cfg, "--json"})
	if code != 3 {
		t.Fatalf("expected exit 3, got %d (stderr: %s)", code, errOut.String())
	}
	if !strings.Contains(out.String(), `"FAILED"`) {
		t.Fatalf("expected FAILED status, got %s", out.String())
	}
}

func TestCheckSucceeds(t *testing.T) {
	var out, errOut bytes.Buffer
	deps := testDeps(t, &out, &errOut)
	deps.NewClient = func(string, time.Duration, ...monday.ClientOption) monday.API { return stubAPI{} }

	code := ExecuteWith(deps, []string{"check", "--api-token", "t"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", code, errOut.String())
	}
	if !strings.Contains(out.String(), "SUCCEEDED") || !strings.Contains(out.String(), "Ada") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestCheckWithoutToken(t *testing.T) {
	var out, errOut bytes.Buffer
	deps := testDeps(t, &out, &errOut)

	code := ExecuteWith(deps, []string{"check"})
	if code != 3 {
		t.Fatalf("expected exit 3, got %d (stderr: %s)", code, errOut.String())
	}
	if !strings.Contains(errOut.String(), "no monday.com API token found") {
		t.Fatalf("expected stderr to mention the missing token, got %s", errOut.String())
	}
}

func TestInvalidConfigExitCode(t *testing.T) {
	var out, errOut bytes.Buffer
	deps := testDeps(t, &out, &errOut)
	cfg := writeConfig(t, "api_token: t\nteams_limit: lots\n")

	if code := ExecuteWith(deps, []string{"check", "--config", cfg}); code != 6 {
		t.Fatalf("expected exit 6, got %d (stderr: %s)", code, errOut.String())
	}
}

func TestReadEmitsRecords(t *testing.T) {
	var out, errOut bytes.Buffer
	deps := testDeps(t, &out, &errOut)
	deps.NewClient = func(string, time.Duration, ...monday.ClientOption) monday.API {
		return stubAPI{body: `{"data":{"users":[{"id":"1"},{"id":"2"}]}}`}
	}
	statePath := filepath.Join(t.TempDir(), "state.json")

	code := ExecuteWith(deps, []string{"read", "users", "--api-token", "t", "--state", statePath, "-q"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", code, errOut.String())
	}

	var types []string
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var msg map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			t.Fatalf("decode line %q: %v", scanner.Text(), err)
		}
		types = append(types, msg["type"].(string))
	}
	if strings.Join(types, ",") != "RECORD,RECORD" {
		t.Fatalf("unexpected messages: %v", types)
	}
}

func TestReadUnknownStream(t *testing.T) {
	var out, errOut bytes.Buffer
	deps := testDeps(t, &out, &errOut)

	code := ExecuteWith(deps, []string{"read", "docs", "--api-token", "t", "--no-state"})
	if code != 4 {
		t.Fatalf("expected exit 4, got %d (stderr: %s)", code, errOut.String())
	}
}

func TestReadRejectsBadMode(t *testing.T) {
	var out, errOut bytes.Buffer
	deps := testDeps(t, &out, &errOut)

	if code := ExecuteWith(deps, []string{"read", "--mode", "sometimes"}); code != 2 {
		t.Fatalf("expected exit 2, got %d (stderr: %s)", code, errOut.String())
	}
}

func TestStateMigrateAndShow(t *testing.T) {
	var out, errOut bytes.Buffer
	deps := testDeps(t, &out, &errOut)
	statePath := filepath.Join(t.TempDir(), "state.json")
	legacy := `{"items":{"updated_at_int":5,"activity_logs":{"created_at_int":1}},"teams":{}}`
	if err := os.WriteFile(statePath, []byte(legacy), 0o600); err != nil {
		t.Fatalf("write state: %v", err)
	}

	code := ExecuteWith(deps, []string{"state", "migrate", "--state", statePath, "--json"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", code, errOut.String())
	}
	var result struct {
		Version  int      `json:"version"`
		Migrated []string `json:"migrated"`
		Written  bool     `json:"written"`
	}
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if result.Version != 2 || !result.Written || len(result.Migrated) != 1 || result.Migrated[0] != "items" {
		t.Fatalf("unexpected result: %+v", result)
	}

	out.Reset()
	code = ExecuteWith(deps, []string{"state", "show", "--state", statePath})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr: %s)", code, errOut.String())
	}
	if strings.Contains(out.String(), "activity_logs") {
		t.Fatalf("legacy key survived migration: %s", out.String())
	}
	if !strings.Contains(out.String(), `{"updated_at_int":5}`) {
		t.Fatalf("unexpected state output: %s", out.String())
	}
}

func TestVersionFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	deps := testDeps(t, &out, &errOut)

	if code := ExecuteWith(deps, []string{"--version"}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.HasPrefix(out.String(), "monday-source version") {
		t.Fatalf("unexpected version output: %s", out.String())
	}
}
