//go:build integration

package itest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"
)

const cliTimeout = 30 * time.Second

type robustCase struct {
	name            string
	args            func(t *testing.T, repoRoot string) []string
	env             map[string]string
	wantContains    []string
	wantNotContains []string
}

type cliRunResult struct {
	exitCode int
	output   string
}

func TestRobustness_ArgsValidation(t *testing.T) {
	repoRoot := mustRepoRoot(t)

	cases := []robustCase{
		{
			name:         "extract no args",
			args:         isolated("extract"),
			wantContains: []string{"accepts 1 arg(s), received 0"},
		},
		{
			name:         "extract too many args",
			args:         isolated("extract", "a.mp4", "b.mp4"),
			wantContains: []string{"accepts 1 arg(s), received 2"},
		},
		{
			name:         "unknown flag",
			args:         isolated("align", "--wat"),
			wantContains: []string{"unknown flag: --wat"},
		},
		{
			name:         "align without inputs",
			args:         isolated("align"),
			wantContains: []string{"scenes table is not set"},
		},
		{
			name:         "bad retain flag",
			args:         isolated("align", "--retain-generated=maybe"),
			wantContains: []string{`invalid argument "maybe" for "--retain-generated"`},
		},
		{
			name:         "unknown run",
			args:         isolated("show", "no-such-run"),
			wantContains: []string{"run not found"},
		},
	}

	runRobustCases(t, repoRoot, cases)
}

func TestRobustness_InvalidInputs(t *testing.T) {
	repoRoot := mustRepoRoot(t)

	cases := []robustCase{
		{
			name:         "missing input dir",
			args:         isolated("align", "--input", "/definitely/not/here"),
			wantContains: []string{"stat input:"},
		},
		{
			name: "malformed timestamp",
			args: func(t *testing.T, root string) []string {
				t.Helper()
				dir := t.TempDir()
				writeFixture(t, dir, "scenes.csv", "id,start_time,end_time,start_frame_num,end_frame_num\nv1,00:00:00,00:00:05,0,150\n")
				writeFixture(t, dir, "transcriptions.csv", "id,start_time,end_time,text\nv1,00:00:01,later,hi\n")
				writeFixture(t, dir, "metadata.csv", "video_id,duration_seconds,fps\nv1,5,30\n")
				return isolated("align", "--input", dir, "--no-store")(t, root)
			},
			wantContains: []string{"segments row 0", `end "later"`},
		},
		{
			name:         "extract missing video",
			args:         isolated("extract", "/definitely/not/here.mp4"),
			wantContains: []string{"stat input:"},
		},
		{
			name: "extract non media file",
			args: func(t *testing.T, root string) []string {
				t.Helper()
				dir := t.TempDir()
				path := writeFixture(t, dir, "not-media.mp4", "plain text")
				return isolated("extract", path, "--skip-transcript", "--tables", dir)(t, root)
			},
			wantContains: []string{"probe:"},
		},
	}

	runRobustCases(t, repoRoot, cases)
}

func TestRobustness_ConfigHardening(t *testing.T) {
	repoRoot := mustRepoRoot(t)

	cases := []robustCase{
		{
			name:         "reject unknown log format",
			args:         isolated("runs"),
			env:          map[string]string{"VIDALIGN_LOG_FORMAT": "xml"},
			wantContains: []string{`logging.format: unsupported value "xml"`},
		},
		{
			name:         "reject bad api bind",
			args:         isolated("runs"),
			env:          map[string]string{"VIDALIGN_API_BIND": "no-port"},
			wantContains: []string{"api.bind"},
		},
		{
			name: "reject unknown config key",
			args: func(t *testing.T, _ string) []string {
				t.Helper()
				dir := t.TempDir()
				cfg := writeFixture(t, dir, "vidalign.toml", "[paths]\nmystery = 1\n")
				return []string{"runs", "--config", cfg, "--store", filepath.Join(dir, "runs.db")}
			},
			wantContains: []string{"parse config"},
		},
	}

	runRobustCases(t, repoRoot, cases)
}

// isolated points config and store at a fresh temp dir so runs never touch
// the user's files.
func isolated(args ...string) func(t *testing.T, _ string) []string {
	clone := append([]string(nil), args...)
	return func(t *testing.T, _ string) []string {
		t.Helper()
		dir := t.TempDir()
		return append(append([]string(nil), clone...),
			"--config", filepath.Join(dir, "missing.toml"),
			"--store", filepath.Join(dir, "runs.db"),
		)
	}
}

func writeFixture(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

func runRobustCases(t *testing.T, repoRoot string, cases []robustCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := runCLI(t, repoRoot, tc.args(t, repoRoot), tc.env)
			if res.exitCode == 0 {
				t.Fatalf("expected non-zero exit code, got 0\noutput:\n%s", res.output)
			}
			for _, want := range tc.wantContains {
				if !strings.Contains(res.output, want) {
					t.Fatalf("expected output to contain %q\noutput:\n%s", want, res.output)
				}
			}
			for _, notWant := range tc.wantNotContains {
				if strings.Contains(res.output, notWant) {
					t.Fatalf("expected output to not contain %q\noutput:\n%s", notWant, res.output)
				}
			}
		})
	}
}

func runCLI(t *testing.T, repoRoot string, args []string, env map[string]string) cliRunResult {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), cliTimeout)
	defer cancel()

	cmdArgs := append([]string{"run", "./cmd/vidalign"}, args...)
	cmd := exec.CommandContext(ctx, "go", cmdArgs...)
	cmd.Dir = repoRoot
	cmd.Env = mergeEnv(
		os.Environ(),
		map[string]string{
			"NO_COLOR": "1",
			"TERM":     "dumb",
		},
		env,
	)

	out, err := cmd.CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatalf("command timed out after %s: go %s", cliTimeout, strings.Join(cmdArgs, " "))
	}

	res := cliRunResult{output: string(out)}
	if err == nil {
		res.exitCode = 0
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.exitCode = exitErr.ExitCode()
		return res
	}

	t.Fatalf("run command: %v\noutput:\n%s", err, string(out))
	return cliRunResult{}
}

func mergeEnv(base []string, overrides ...map[string]string) []string {
	env := make(map[string]string, len(base))
	for _, kv := range base {
		i := strings.IndexByte(kv, '=')
		if i <= 0 {
			continue
		}
		env[kv[:i]] = kv[i+1:]
	}

	for _, set := range overrides {
		for k, v := range set {
			env[k] = v
		}
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(out)
	return out
}

func mustRepoRoot(t *testing.T) string {
	t.Helper()

	repoRoot, err := findRepoRoot()
	if err != nil {
		t.Fatalf("repo root: %v", err)
	}
	return repoRoot
}
