package action

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/syslua/syslua/pkg/constants"
	"github.com/syslua/syslua/pkg/engineerr"
	"github.com/syslua/syslua/pkg/logger"
	"github.com/syslua/syslua/pkg/stringutil"
)

var execLog = logger.New("action:executor")

// Result is the outcome of a single executed action: its captured stdout
// (addressable by later actions in the same entity as $${action:<index>})
// and, for fetch_url, the absolute path of the cached file.
type Result struct {
	Stdout     string
	StdoutPath string // set only by FetchURL: the cached file's absolute path
}

// Executor runs actions hermetically. The zero value is usable.
type Executor struct {
	// StdoutCaptureLimit bounds the in-memory buffer used to capture stdout.
	// Zero means constants.DefaultActionOutputCaptureLimit.
	StdoutCaptureLimit int64
	// StderrTailLength bounds how much of stderr is retained for failure
	// reports. Zero means constants.DefaultStderrTailLength.
	StderrTailLength int
	// HTTPClient is used for fetch_url; nil means http.DefaultClient.
	HTTPClient *http.Client
	// InputsCacheDir is the default cache directory passed to RunFetchURL by
	// callers that don't need a per-call override (the apply engine).
	InputsCacheDir string
}

func (e *Executor) stdoutLimit() int64 {
	if e.StdoutCaptureLimit > 0 {
		return e.StdoutCaptureLimit
	}
	return constants.DefaultActionOutputCaptureLimit
}

func (e *Executor) stderrTail() int {
	if e.StderrTailLength > 0 {
		return e.StderrTailLength
	}
	return constants.DefaultStderrTailLength
}

// RunExec spawns bin with args in cwd, giving the child exactly env (no
// inheritance from the current process). stderr is buffered while the
// process runs; once it exits, the sanitized tail goes into the failure
// report and is logged at debug level. stderr is not streamed to the logger
// while the process is still running.
func (e *Executor) RunExec(ctx context.Context, ex Exec, entityHash constants.ObjectHash, actionIndex int) (Result, error) {
	env := ex.Env
	hasPath := false
	for k := range env {
		if k == "PATH" {
			hasPath = true
			break
		}
	}
	envList := make([]string, 0, len(env)+1)
	for k, v := range env {
		envList = append(envList, k+"="+v)
	}
	if !hasPath {
		envList = append(envList, "PATH="+constants.HermeticPath)
	}

	cmd := exec.CommandContext(ctx, ex.Bin, ex.Args...)
	cmd.Env = envList
	cmd.Dir = ex.Cwd

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, limit: e.stdoutLimit()}
	cmd.Stderr = &stderr

	execLog.Printf("exec: bin=%s args=%v cwd=%s", ex.Bin, ex.Args, ex.Cwd)
	runErr := cmd.Run()

	stderrTail := tailString(stderr.String(), e.stderrTail())
	if stderrTail != "" {
		execLog.Printf("stderr (%s action %d): %s", entityHash, actionIndex, stringutil.SanitizeErrorMessage(stderrTail))
	}

	if runErr != nil {
		exitCode := -1
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return Result{}, &engineerr.ActionError{
			Kind:        constants.ActionKindExec,
			EntityHash:  entityHash,
			ActionIndex: actionIndex,
			ExitCode:    exitCode,
			StdoutTail:  stdout.String(),
			StderrTail:  stringutil.SanitizeErrorMessage(stderrTail),
			Cause:       runErrWithoutExitStatusNoise(runErr),
		}
	}

	return Result{Stdout: stdout.String()}, nil
}

// runErrWithoutExitStatusNoise returns nil for a plain non-zero exit (the
// exit code field already carries that information) and the original error
// otherwise (process failed to start, context canceled, etc).
func runErrWithoutExitStatusNoise(err error) error {
	if _, ok := err.(*exec.ExitError); ok {
		return nil
	}
	return err
}

// RunFetchURL downloads URL into cacheDir, named by its declared SHA256, and
// verifies the checksum as the body streams. A cache hit skips the network
// entirely. The action's result is the absolute path of the cached file.
// Connection failures and any response status other than 200 are retried with exponential
// backoff (§4.F.4); a checksum mismatch is a hard failure, never retried.
func (e *Executor) RunFetchURL(ctx context.Context, f FetchURL, cacheDir string, entityHash constants.ObjectHash, actionIndex int) (Result, error) {
	cachePath := filepath.Join(cacheDir, f.SHA256)
	if _, err := os.Stat(cachePath); err == nil {
		execLog.Printf("fetch_url cache hit: %s", f.SHA256)
		return Result{StdoutPath: cachePath}, nil
	}

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return Result{}, fetchErr(entityHash, actionIndex, err)
	}

	var lastErr error
	for attempt := 0; attempt <= constants.MaxFetchRetries; attempt++ {
		if attempt > 0 {
			delay := fetchRetryDelay(attempt)
			execLog.Printf("fetch_url retry %d/%d for %s in %s: %v", attempt, constants.MaxFetchRetries, f.URL, delay, lastErr)
			select {
			case <-ctx.Done():
				return Result{}, fetchErr(entityHash, actionIndex, ctx.Err())
			case <-time.After(delay):
			}
		}

		path, transient, err := e.fetchOnce(ctx, f, cacheDir, cachePath)
		if err == nil {
			return Result{StdoutPath: path}, nil
		}
		if !transient {
			return Result{}, fetchErr(entityHash, actionIndex, err)
		}
		lastErr = err
	}
	return Result{}, fetchErr(entityHash, actionIndex, fmt.Errorf("exhausted %d retries: %w", constants.MaxFetchRetries, lastErr))
}

// fetchOnce performs a single download-and-verify attempt. The bool return
// reports whether a failure is transient (connection error, status other than 200)
// and therefore worth retrying, as opposed to a local or content error.
func (e *Executor) fetchOnce(ctx context.Context, f FetchURL, cacheDir, cachePath string) (string, bool, error) {
	client := e.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return "", false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", true, fmt.Errorf("unexpected HTTP status %d fetching %s", resp.StatusCode, f.URL)
	}

	tmp, err := os.CreateTemp(cacheDir, ".fetch-*.tmp")
	if err != nil {
		return "", false, err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body); err != nil {
		tmp.Close()
		return "", true, err
	}
	if err := tmp.Close(); err != nil {
		return "", false, err
	}

	got := hex.EncodeToString(hasher.Sum(nil))
	if got != f.SHA256 {
		return "", false, fmt.Errorf("checksum mismatch for %s: declared %s, got %s", f.URL, f.SHA256, got)
	}

	if err := os.Rename(tmpName, cachePath); err != nil {
		return "", false, err
	}
	return cachePath, false, nil
}

// fetchRetryDelay computes exponential backoff for the given attempt number
// (1-indexed), capped at FetchRetryMaxDelay.
func fetchRetryDelay(attempt int) time.Duration {
	delay := constants.FetchRetryBaseDelay << uint(attempt-1)
	if delay > constants.FetchRetryMaxDelay {
		return constants.FetchRetryMaxDelay
	}
	return delay
}

func fetchErr(entityHash constants.ObjectHash, actionIndex int, cause error) *engineerr.ActionError {
	return &engineerr.ActionError{
		Kind: constants.ActionKindFetchURL, EntityHash: entityHash, ActionIndex: actionIndex, Cause: cause,
	}
}

// limitedWriter truncates beyond limit without erroring, so an action with a
// chatty process still completes instead of filling memory.
type limitedWriter struct {
	w      io.Writer
	limit  int64
	n      int64
	capped bool
}

// Write always reports success for the full length of p, even past the
// cap, so a chatty child process never sees a short-write error; bytes
// beyond the limit are simply dropped.
func (lw *limitedWriter) Write(p []byte) (int, error) {
	full := len(p)
	if lw.n >= lw.limit {
		lw.capped = true
		return full, nil
	}
	remaining := lw.limit - lw.n
	truncated := p
	if int64(len(truncated)) > remaining {
		truncated = truncated[:remaining]
		lw.capped = true
	}
	n, err := lw.w.Write(truncated)
	lw.n += int64(n)
	if err != nil {
		return n, err
	}
	return full, nil
}

func tailString(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
