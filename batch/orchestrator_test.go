package batch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func typedObjectResponse(sc, p, oc string) string {
	return `{"head":{"vars":["sc","p","oc"]},"results":{"bindings":[` +
		`{"sc":{"type":"uri","value":"` + sc + `"},"p":{"type":"uri","value":"` + p + `"},"oc":{"type":"uri","value":"` + oc + `"}}` +
		`]}}`
}

func emptyBindings() string {
	return `{"head":{"vars":[]},"results":{"bindings":[]}}`
}

func goodEndpoint(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		if query == "" {
			r.ParseForm()
			query = r.PostForm.Get("query")
		}
		if len(query) > 0 && contains(query, "?oc") {
			w.Write([]byte(typedObjectResponse("http://ex/C1", "http://ex/p1", "http://ex/C2")))
			return
		}
		w.Write([]byte(emptyBindings()))
	}))
}

func failingEndpoint(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad query"))
	}))
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestRun_HappyPathSingleRow(t *testing.T) {
	srv := goodEndpoint(t)
	defer srv.Close()

	dir := t.TempDir()
	sources := []Source{{DatasetName: "ds1", EndpointURL: srv.URL}}

	var calls int
	result, err := Run(context.Background(), sources, Config{
		OutputDir: dir,
		Format:    FormatAll,
		ChunkSize: 100,
		Progress: func(name string, index, total int, status *string) {
			calls++
			if status != nil {
				t.Errorf("expected success status, got %v", *status)
			}
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Succeeded) != 1 || result.Succeeded[0] != "ds1" {
		t.Fatalf("Succeeded = %v", result.Succeeded)
	}
	if len(result.Failed) != 0 || len(result.Skipped) != 0 {
		t.Fatalf("unexpected Failed/Skipped: %+v", result)
	}
	if calls != 1 {
		t.Fatalf("callback invoked %d times, want 1", calls)
	}
	if result.ExitCode() != 0 {
		t.Fatalf("ExitCode = %d, want 0", result.ExitCode())
	}

	for _, name := range []string{"ds1_schema.jsonld", "ds1_void.ttl"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected output file %s: %v", name, err)
		}
	}
}

func TestRun_SkippedRowHasNoOutputAndIsNeverCountedElsewhere(t *testing.T) {
	dir := t.TempDir()
	sources := []Source{{DatasetName: "ds0", EndpointURL: ""}}

	var gotStatus *string
	result, err := Run(context.Background(), sources, Config{
		OutputDir: dir,
		Format:    FormatAll,
		Progress: func(name string, index, total int, status *string) {
			gotStatus = status
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "ds0" {
		t.Fatalf("Skipped = %v", result.Skipped)
	}
	if len(result.Succeeded) != 0 || len(result.Failed) != 0 {
		t.Fatalf("unexpected Succeeded/Failed: %+v", result)
	}
	if gotStatus == nil || *gotStatus != "skipped" {
		t.Fatalf("expected skipped status, got %v", gotStatus)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if contains(e.Name(), "ds0") {
			t.Errorf("unexpected output file for a skipped row: %s", e.Name())
		}
	}
}

func TestRun_MixedBatchPreservesOrder(t *testing.T) {
	good := goodEndpoint(t)
	defer good.Close()
	bad := failingEndpoint(t)
	defer bad.Close()

	dir := t.TempDir()
	sources := []Source{
		{DatasetName: "good", EndpointURL: good.URL},
		{DatasetName: "nope", EndpointURL: ""},
		{DatasetName: "bad", EndpointURL: bad.URL},
	}

	var order []string
	result, err := Run(context.Background(), sources, Config{
		OutputDir: dir,
		Format:    FormatJSONLD,
		ChunkSize: 100,
		Progress: func(name string, index, total int, status *string) {
			order = append(order, name)
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result.Succeeded) != 1 || result.Succeeded[0] != "good" {
		t.Fatalf("Succeeded = %v", result.Succeeded)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "nope" {
		t.Fatalf("Skipped = %v", result.Skipped)
	}
	if len(result.Failed) != 1 || result.Failed[0].Dataset != "bad" || result.Failed[0].Error == "" {
		t.Fatalf("Failed = %+v", result.Failed)
	}
	wantOrder := []string{"good", "nope", "bad"}
	for i, name := range wantOrder {
		if order[i] != name {
			t.Fatalf("callback order = %v, want %v", order, wantOrder)
		}
	}
	if result.ExitCode() != 1 {
		t.Fatalf("ExitCode = %d, want 1", result.ExitCode())
	}

	if _, err := os.Stat(filepath.Join(dir, "good_schema.jsonld")); err != nil {
		t.Errorf("expected output for the succeeded row: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "bad_schema.jsonld")); err == nil {
		t.Errorf("did not expect output for the failed row")
	}
}

func TestRun_WriteReportsEmitsPerDatasetReport(t *testing.T) {
	srv := goodEndpoint(t)
	defer srv.Close()

	dir := t.TempDir()
	sources := []Source{{DatasetName: "ds1", EndpointURL: srv.URL}}

	_, err := Run(context.Background(), sources, Config{
		OutputDir:    dir,
		Format:       FormatJSONLD,
		ChunkSize:    100,
		WriteReports: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "ds1_report.json")); err != nil {
		t.Errorf("expected a report file: %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"jsonld": FormatJSONLD, "void": FormatVoID, "all": FormatAll}
	for s, want := range cases {
		got, err := ParseFormat(s)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := ParseFormat("bogus"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
