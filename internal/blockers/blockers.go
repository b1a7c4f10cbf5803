// Package blockers scans text for file:line references an agent emitted
// while describing what is blocking its progress.
package blockers

import (
	"regexp"
	"strings"
)

const maxBlockers = 10

var fileLineRe = regexp.MustCompile(`\b([\w./-]+\.[A-Za-z0-9]+):(\d+)(?:-(\d+))?\b`)

// Blocker is one extracted file:line reference.
type Blocker struct {
	Description string
	File        string
	LineRange   string
}

// Extract scans text for <file>:<line> or <file>:<start>-<end> references,
// capturing the full containing line as the description. Results are
// de-duplicated on the file:range key, capped at 10 entries, and ordered
// by first occurrence.
func Extract(text string) []Blocker {
	lines := strings.Split(text, "\n")

	seen := make(map[string]bool)
	var out []Blocker

	for _, line := range lines {
		if len(out) >= maxBlockers {
			break
		}
		matches := fileLineRe.FindAllStringSubmatch(line, -1)
		for _, m := range matches {
			if len(out) >= maxBlockers {
				break
			}
			file := m[1]
			lineRange := m[2]
			if m[3] != "" {
				lineRange = m[2] + "-" + m[3]
			}
			key := file + ":" + lineRange
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, Blocker{
				Description: line,
				File:        file,
				LineRange:   lineRange,
			})
		}
	}

	return out
}
