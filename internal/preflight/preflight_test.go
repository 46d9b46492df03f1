package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"audioindex/internal/audioservice"
	"audioindex/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckIndexFile(t *testing.T) {
	dir := t.TempDir()

	missing := CheckIndexFile("index", filepath.Join(dir, "absent.json"))
	if !missing.Passed || !strings.Contains(missing.Detail, "not created yet") {
		t.Fatalf("missing file: %+v", missing)
	}

	corrupt := filepath.Join(dir, "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckIndexFile("index", corrupt); result.Passed {
		t.Fatalf("expected corrupt file to fail: %+v", result)
	}

	drifted := filepath.Join(dir, "drifted.json")
	contents := `{"version":"1.0","lastUpdated":"2026-01-01T00:00:00Z","records":{},"entryIndex":{"mvura":["ghost"]},"levelIndex":{}}`
	if err := os.WriteFile(drifted, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckIndexFile("index", drifted); result.Passed || !strings.Contains(result.Detail, "issues") {
		t.Fatalf("expected drift to be reported: %+v", result)
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestCheckReachable(t *testing.T) {
	if r := CheckReachable(context.Background(), "db", stubPinger{}); !r.Passed {
		t.Fatalf("expected pass: %+v", r)
	}
	if r := CheckReachable(context.Background(), "db", stubPinger{err: context.DeadlineExceeded}); r.Passed || r.Detail != "check timed out" {
		t.Fatalf("expected timeout summary: %+v", r)
	}
	if r := CheckReachable(context.Background(), "db", stubPinger{err: errors.New("refused")}); r.Passed || r.Detail != "refused" {
		t.Fatalf("expected error detail: %+v", r)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil, nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_LocalBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc, err := audioservice.Open(context.Background(), cfg, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer svc.Close()

	results := RunAll(context.Background(), cfg, svc.Backend())
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	want := "Data directory,Blob directory,Index file,Snapshot file,Blob store"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("checks = %s, want %s", got, want)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}
