package action

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/engineerr"
)

func TestRunExecCapturesStdout(t *testing.T) {
	dir := t.TempDir()
	var e Executor
	result, err := e.RunExec(context.Background(), Exec{
		Bin:  "/bin/echo",
		Args: []string{"hello"},
		Cwd:  dir,
	}, "00000000000000000001", 0)
	if err != nil {
		t.Fatalf("RunExec: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Errorf("stdout = %q, want %q", result.Stdout, "hello")
	}
}

func TestRunExecNonZeroExitIsActionError(t *testing.T) {
	var e Executor
	_, err := e.RunExec(context.Background(), Exec{
		Bin:  "/bin/sh",
		Args: []string{"-c", "exit 3"},
	}, "00000000000000000001", 1)
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	var actionErr *engineerr.ActionError
	if !asActionError(err, &actionErr) {
		t.Fatalf("expected *engineerr.ActionError, got %T: %v", err, err)
	}
	if actionErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", actionErr.ExitCode)
	}
}

func TestRunExecHermeticEnvironment(t *testing.T) {
	os.Setenv("SYSLUA_TEST_LEAK", "should-not-leak")
	defer os.Unsetenv("SYSLUA_TEST_LEAK")

	var e Executor
	result, err := e.RunExec(context.Background(), Exec{
		Bin:  "/bin/sh",
		Args: []string{"-c", "echo \"$SYSLUA_TEST_LEAK|$PATH\""},
	}, "00000000000000000001", 0)
	if err != nil {
		t.Fatalf("RunExec: %v", err)
	}
	if strings.Contains(result.Stdout, "should-not-leak") {
		t.Errorf("child process inherited host environment: %q", result.Stdout)
	}
	if !strings.Contains(result.Stdout, "/path-not-set") {
		t.Errorf("expected hermetic PATH fallback in output, got %q", result.Stdout)
	}
}

func TestRunFetchURLVerifiesChecksum(t *testing.T) {
	body := []byte("package contents")
	sum := sha256.Sum256(body)
	sha256hex := hex.EncodeToString(sum[:])

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	var e Executor
	result, err := e.RunFetchURL(context.Background(), FetchURL{URL: srv.URL, SHA256: sha256hex}, cacheDir, "00000000000000000001", 0)
	if err != nil {
		t.Fatalf("RunFetchURL: %v", err)
	}
	if result.StdoutPath != filepath.Join(cacheDir, sha256hex) {
		t.Errorf("StdoutPath = %q, want cache slot named by hash", result.StdoutPath)
	}
	got, err := os.ReadFile(result.StdoutPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(body) {
		t.Errorf("cached content = %q, want %q", got, body)
	}
}

func TestRunFetchURLRejectsChecksumMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("corrupted"))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	var e Executor
	_, err := e.RunFetchURL(context.Background(), FetchURL{URL: srv.URL, SHA256: strings.Repeat("0", 64)}, cacheDir, "00000000000000000001", 0)
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}

	entries, _ := os.ReadDir(cacheDir)
	for _, e := range entries {
		t.Errorf("expected partial file to be discarded, found %q", e.Name())
	}
}

func TestRunFetchURLCacheHitSkipsNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	sum := sha256.Sum256([]byte("cached"))
	sha256hex := hex.EncodeToString(sum[:])
	if err := os.WriteFile(filepath.Join(cacheDir, sha256hex), []byte("cached"), 0o644); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	var e Executor
	result, err := e.RunFetchURL(context.Background(), FetchURL{URL: srv.URL, SHA256: sha256hex}, cacheDir, "00000000000000000001", 0)
	if err != nil {
		t.Fatalf("RunFetchURL: %v", err)
	}
	if called {
		t.Error("expected cache hit to skip the network entirely")
	}
	if result.StdoutPath == "" {
		t.Error("expected StdoutPath to be set on cache hit")
	}
}

func TestRunFetchURLRetriesTransientFailures(t *testing.T) {
	body := []byte("retry me")
	sum := sha256.Sum256(body)
	sha256hex := hex.EncodeToString(sum[:])

	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	var e Executor
	result, err := e.RunFetchURL(context.Background(), FetchURL{URL: srv.URL, SHA256: sha256hex}, cacheDir, "00000000000000000001", 0)
	if err != nil {
		t.Fatalf("RunFetchURL: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if result.StdoutPath != filepath.Join(cacheDir, sha256hex) {
		t.Errorf("StdoutPath = %q, want cache slot named by hash", result.StdoutPath)
	}
}

func TestRunFetchURLGivesUpAfterMaxRetries(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	var e Executor
	_, err := e.RunFetchURL(context.Background(), FetchURL{URL: srv.URL, SHA256: strings.Repeat("0", 64)}, cacheDir, "00000000000000000001", 0)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	want := constants.MaxFetchRetries + 1
	if attempts != want {
		t.Errorf("attempts = %d, want %d", attempts, want)
	}
}

func asActionError(err error, target **engineerr.ActionError) bool {
	ae, ok := err.(*engineerr.ActionError)
	if ok {
		*target = ae
	}
	return ok
}
