package supervisor

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

const diffQueryTimeout = 10 * time.Second

// gitDiffAgainstHEAD returns the unified diff of workspace against HEAD,
// or a sentinel string when there is nothing to diff or the query fails.
func gitDiffAgainstHEAD(ctx context.Context, workspace string) string {
	ctx, cancel := context.WithTimeout(ctx, diffQueryTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "diff", "HEAD")
	cmd.Dir = workspace

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return "(unavailable)"
	}

	if strings.TrimSpace(stdout.String()) == "" {
		return "(no changes)"
	}
	return stdout.String()
}
