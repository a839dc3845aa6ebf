package cli

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
)

func run(t *testing.T, dir string, args ...string) (map[string]any, error) {
	t.Helper()
	cmd := NewRoot()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--data-dir", dir, "--log-level", "error"))
	if err := cmd.Execute(); err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("decode output %q: %v", buf.String(), err)
	}
	return out, nil
}

func mustRun(t *testing.T, dir string, args ...string) map[string]any {
	t.Helper()
	out, err := run(t, dir, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func TestEnqueueDequeueAcrossInvocations(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, dir, "enqueue", "-q", "jobs", "a", "b")
	if ids, _ := out["ids"].([]any); len(ids) != 2 {
		t.Fatalf("expected two ids, got %v", out)
	}

	out = mustRun(t, dir, "peek", "-q", "jobs")
	if out["value"] != "a" {
		t.Fatalf("peek: %v", out)
	}
	out = mustRun(t, dir, "dequeue", "-q", "jobs")
	if out["value"] != "a" {
		t.Fatalf("first dequeue: %v", out)
	}
	out = mustRun(t, dir, "dequeue", "-q", "jobs", "--keep", "--timeout", "1h")
	if out["value"] != "b" {
		t.Fatalf("second dequeue: %v", out)
	}
	out = mustRun(t, dir, "dequeue", "-q", "jobs")
	if out["status"] != "EMPTY" {
		t.Fatalf("expected empty while b is hidden: %v", out)
	}
	out = mustRun(t, dir, "stats", "-q", "jobs")
	if out["total"] != float64(1) || out["invisible"] != float64(1) {
		t.Fatalf("stats: %v", out)
	}
}

func TestFilterWorkflow(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, dir, "enqueue", "--filter", "One", "Two", "Skipped", "Three")
	ids := out["ids"].([]any)
	skipped := ids[2].(float64)

	mustRun(t, dir, "delete", "--filter", "--id", formatID(skipped))

	out = mustRun(t, dir, "list", "--filter")
	if out["count"] != float64(3) {
		t.Fatalf("active: %v", out)
	}
	out = mustRun(t, dir, "list", "--filter", "--state", "deleted")
	if out["count"] != float64(1) {
		t.Fatalf("deleted: %v", out)
	}

	for _, want := range []string{"One", "Two", "Three"} {
		out = mustRun(t, dir, "dequeue", "--filter")
		if out["value"] != want {
			t.Fatalf("dequeue: want %s got %v", want, out)
		}
	}

	out = mustRun(t, dir, "purge", "--filter")
	if out["purged"] != float64(4) {
		t.Fatalf("purge: %v", out)
	}
	out = mustRun(t, dir, "list", "--filter", "--state", "all")
	if out["count"] != float64(0) {
		t.Fatalf("all after purge: %v", out)
	}
}

func TestFilterOnlyCommands(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, dir, "purge"); err == nil || !strings.Contains(err.Error(), "--filter") {
		t.Fatalf("expected --filter error, got %v", err)
	}
	if _, err := run(t, dir, "list", "--filter", "--state", "gone"); err == nil {
		t.Fatalf("expected invalid state error")
	}
}

func TestDeleteMissingItem(t *testing.T) {
	dir := t.TempDir()
	if _, err := run(t, dir, "delete", "--id", "99"); err == nil {
		t.Fatalf("expected not found")
	}
}

func TestInvalidateAndReset(t *testing.T) {
	dir := t.TempDir()
	out := mustRun(t, dir, "enqueue", "x")
	id := out["ids"].([]any)[0].(float64)

	out = mustRun(t, dir, "invalidate", "--id", formatID(id), "--timeout", "1h")
	if out["value"] != "x" {
		t.Fatalf("invalidate: %v", out)
	}
	out = mustRun(t, dir, "peek")
	if out["status"] != "EMPTY" {
		t.Fatalf("expected hidden item: %v", out)
	}

	mustRun(t, dir, "reset")
	out = mustRun(t, dir, "stats")
	if out["total"] != float64(0) {
		t.Fatalf("reset: %v", out)
	}
}

func TestResetTargetsSelectedQueue(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "enqueue", "-q", "jobs", "a", "b")
	mustRun(t, dir, "enqueue", "keep")

	out := mustRun(t, dir, "reset", "-q", "jobs")
	if out["queue"] != "jobs" {
		t.Fatalf("reset: %v", out)
	}
	if out = mustRun(t, dir, "stats", "-q", "jobs"); out["total"] != float64(0) {
		t.Fatalf("jobs after reset: %v", out)
	}
	if out = mustRun(t, dir, "stats"); out["total"] != float64(1) {
		t.Fatalf("default queue must be untouched: %v", out)
	}

	mustRun(t, dir, "enqueue", "-q", "jobs", "--filter", "f")
	mustRun(t, dir, "reset", "-q", "jobs", "--filter")
	if out = mustRun(t, dir, "stats", "-q", "jobs", "--filter"); out["total"] != float64(0) {
		t.Fatalf("filter jobs after reset: %v", out)
	}
}

func TestSQLiteBackendFlag(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "enqueue", "--backend", "sqlite", "v")
	out := mustRun(t, dir, "dequeue", "--backend", "sqlite")
	if out["value"] != "v" {
		t.Fatalf("sqlite dequeue: %v", out)
	}
}

func formatID(v float64) string { return strconv.FormatUint(uint64(v), 10) }
