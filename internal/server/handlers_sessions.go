package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/workspace/agent-gateway/internal/errs"
	"github.com/workspace/agent-gateway/internal/pathguard"
	"github.com/workspace/agent-gateway/internal/redact"
	"github.com/workspace/agent-gateway/internal/store"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	var summaries []store.Summary
	var err error
	if s.idx != nil {
		summaries, err = s.idx.List()
	}
	if s.idx == nil || err != nil {
		summaries, err = s.store.ListSessions()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state, err := s.store.GetState(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read session state")
		return
	}
	if state == nil {
		writeTypedError(w, errs.New(errs.KindNotFound, "session not found"), nil, 0)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state, err := s.store.GetState(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read session state")
		return
	}
	if state == nil {
		writeTypedError(w, errs.New(errs.KindNotFound, "session not found"), nil, 0)
		return
	}
	if state.Status != store.StatusRunning {
		writeTypedError(w, errs.New(errs.KindConflict, "session is not running"), map[string]any{"status": state.Status}, 0)
		return
	}

	s.cancelMu.Lock()
	flag, ok := s.cancelFlags[id]
	s.cancelMu.Unlock()
	if ok {
		flag.set(true)
	}

	aborted := store.StatusAborted
	summary := "Aborted by client request"
	if _, err := s.store.UpdateState(id, store.Patch{Status: &aborted, ErrorSummary: &summary}); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record abort")
		return
	}
	s.indexUpsertFromState(id, state.Goal)

	writeJSON(w, http.StatusOK, map[string]string{"status": "aborted"})
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state, err := s.store.GetState(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read session state")
		return
	}
	if state == nil {
		writeTypedError(w, errs.New(errs.KindNotFound, "session not found"), nil, 0)
		return
	}
	artifacts := state.Artifacts
	if artifacts == nil {
		artifacts = []store.Artifact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": artifacts})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	name := r.PathValue("name")

	state, err := s.store.GetState(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read session state")
		return
	}
	if state == nil {
		writeTypedError(w, errs.New(errs.KindNotFound, "session not found"), nil, 0)
		return
	}

	indexed := false
	for _, a := range state.Artifacts {
		if a.Name == name {
			indexed = true
			break
		}
	}
	if !indexed {
		writeTypedError(w, errs.New(errs.KindNotFound, "artifact not present in session state"), nil, 0)
		return
	}

	task, err := s.store.GetTask(id)
	if err != nil || task == nil {
		writeError(w, http.StatusInternalServerError, "failed to read session task")
		return
	}

	path, err := s.store.GetArtifactPath(id, name, task.WorkspaceRoot)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve artifact path")
		return
	}
	if path == "" {
		writeTypedError(w, errs.New(errs.KindNotFound, "artifact file not found"), nil, 0)
		return
	}

	http.ServeFile(w, r, path)
}

func (s *Server) handleExcerpt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	task, err := s.store.GetTask(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read session task")
		return
	}
	if task == nil {
		writeTypedError(w, errs.New(errs.KindNotFound, "session not found"), nil, 0)
		return
	}

	reqPath := r.URL.Query().Get("path")
	if reqPath == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	candidate := reqPath
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(task.WorkspaceRoot, candidate)
	}

	// Scoped to this session's own workspace root, not the global allowed
	// roots, so one session cannot read a sibling workspace via excerpt.
	result := pathguard.Validate(candidate, []string{task.WorkspaceRoot}, s.cfg.DenyGlobs)
	if !result.Allowed {
		writeTypedError(w, errs.New(errs.KindPathDenied, "path denied: "+result.Reason), nil, http.StatusForbidden)
		return
	}

	data, err := os.ReadFile(result.Resolved)
	if err != nil {
		writeTypedError(w, errs.New(errs.KindNotFound, "file not found"), nil, 0)
		return
	}

	lineStart := queryInt(r, "line_start", queryInt(r, "start", 1))
	lineEnd := queryInt(r, "line_end", queryInt(r, "end", 0))
	maxChars := queryInt(r, "max_chars", s.cfg.ExcerptMaxChars)
	if maxChars <= 0 || maxChars > s.cfg.ExcerptMaxChars {
		maxChars = s.cfg.ExcerptMaxChars
	}

	lines := strings.Split(string(data), "\n")
	if lineStart < 1 {
		lineStart = 1
	}
	if lineEnd <= 0 || lineEnd > len(lines) {
		lineEnd = len(lines)
	}
	if lineStart > len(lines) {
		lineStart = len(lines)
	}

	var b strings.Builder
	for i := lineStart; i <= lineEnd; i++ {
		if i < 1 || i > len(lines) {
			continue
		}
		if b.Len() >= maxChars {
			break
		}
		b.WriteString(lines[i-1])
		b.WriteByte('\n')
	}
	content := b.String()
	if len(content) > maxChars {
		content = content[:maxChars]
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path":       reqPath,
		"line_start": lineStart,
		"line_end":   lineEnd,
		"content":    redact.Redact(content),
	})
}

const logtailReadChunk = 512

func (s *Server) handleLogtail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state, err := s.store.GetState(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read session state")
		return
	}
	if state == nil {
		writeTypedError(w, errs.New(errs.KindNotFound, "session not found"), nil, 0)
		return
	}

	stream := r.URL.Query().Get("stream")
	if stream == "" {
		stream = "stdout"
	}
	if stream != "stdout" && stream != "stderr" {
		writeError(w, http.StatusBadRequest, "stream must be \"stdout\" or \"stderr\"")
		return
	}

	n := queryInt(r, "n", 50)
	if n < 1 {
		n = 50
	}
	if n > s.cfg.LogtailMaxLines {
		n = s.cfg.LogtailMaxLines
	}

	logPath := filepath.Join(s.store.SessionDir(id), "turns", "0001", stream+".log")
	lines, err := tailLines(logPath, n)
	if err != nil {
		writeTypedError(w, errs.New(errs.KindNotFound, "log not available yet"), nil, 0)
		return
	}

	grep := r.URL.Query().Get("grep")
	if grep != "" {
		filtered := lines[:0]
		for _, l := range lines {
			if strings.Contains(l, grep) {
				filtered = append(filtered, l)
			}
		}
		lines = filtered
	}

	redacted := make([]string, len(lines))
	for i, l := range lines {
		redacted[i] = redact.Redact(l)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lines":  redacted,
		"stream": stream,
		"n":      n,
	})
}

// tailLines reads a bounded suffix of path (n*512 bytes) and returns up to
// the last n newline-delimited lines, discarding the first line of the
// suffix since it may be a partial line split by the read boundary.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	readSize := int64(n) * logtailReadChunk
	offset := int64(0)
	discardFirst := false
	if info.Size() > readSize {
		offset = info.Size() - readSize
		discardFirst = true
	}

	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, err
	}

	lines := strings.Split(string(buf), "\n")
	if discardFirst && len(lines) > 1 {
		lines = lines[1:]
	}
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
