// Package changedetector lists files a task's workspace touched, by
// querying the workspace's version-control tooling directly rather than
// diffing the filesystem by hand.
package changedetector

import (
	"bytes"
	"context"
	"os/exec"
	"sort"
	"strings"
	"time"
)

const queryTimeout = 10 * time.Second

// Detect runs two version-control queries in parallel in workspace and
// returns the union of modified-since-HEAD and untracked-non-ignored
// files, as workspace-relative paths. Any failure (no repo, missing HEAD,
// git not installed) yields an empty slice for that query rather than an
// error — the whole function never fails.
func Detect(ctx context.Context, workspace string) []string {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	type result struct {
		files []string
	}
	modifiedCh := make(chan result, 1)
	untrackedCh := make(chan result, 1)

	go func() {
		modifiedCh <- result{files: runGitNameList(ctx, workspace, "diff", "--name-only", "HEAD")}
	}()
	go func() {
		untrackedCh <- result{files: runGitNameList(ctx, workspace, "ls-files", "--others", "--exclude-standard")}
	}()

	modified := <-modifiedCh
	untracked := <-untrackedCh

	seen := make(map[string]bool, len(modified.files)+len(untracked.files))
	union := make([]string, 0, len(modified.files)+len(untracked.files))
	for _, f := range append(modified.files, untracked.files...) {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		union = append(union, f)
	}

	sort.Strings(union)
	return union
}

func runGitNameList(ctx context.Context, workspace string, args ...string) []string {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = workspace

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = nil

	if err := cmd.Run(); err != nil {
		return nil
	}

	lines := strings.Split(stdout.String(), "\n")
	files := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files
}
