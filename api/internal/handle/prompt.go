package handle

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"plant-doctor/api/internal/apperr"
	"plant-doctor/api/internal/plant/prompt"
)

type PromptInfo struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type UpdatePromptRequest struct {
	Text string `json:"text"`
}

type UpdatePromptResponse struct {
	OK        bool   `json:"ok"`
	Name      string `json:"name"`
	Persisted bool   `json:"persisted"`
	Path      string `json:"path,omitempty"`
	Size      int    `json:"size"`
	Updated   string `json:"updated"`
}

func (h *Handle) Prompts(w http.ResponseWriter, r *http.Request) {
	out := make([]PromptInfo, 0, len(prompt.Names()))
	for _, n := range prompt.Names() {
		src, _ := h.binder.Source(n)
		out = append(out, PromptInfo{Name: n, Text: src})
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdatePrompt swaps a prompt template at runtime and, when PROMPT_DIR is set, persists it
// as <PROMPT_DIR>/<name>.tmpl using an atomic rename.
func (h *Handle) UpdatePrompt(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	name := r.PathValue("name")
	var req UpdatePromptRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 4<<20)) // 4 MiB limit
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, r, apperr.InvalidInput("bad json", err.Error()))
		return
	}

	if err := h.binder.Check(name, req.Text); err != nil {
		if errors.Is(err, prompt.ErrUnknownTemplate) {
			h.writeError(w, r, apperr.NotFound("prompt", name))
			return
		}
		h.writeError(w, r, apperr.InvalidInput("prompt does not parse", err.Error()))
		return
	}

	resp := UpdatePromptResponse{
		OK:      true,
		Name:    name,
		Size:    len(req.Text),
		Updated: time.Now().UTC().Format(time.RFC3339),
	}
	// persist first: a prompt that cannot be saved must not go live
	if h.promptDir != "" {
		path, err := writeAtomic(h.promptDir, name+".tmpl", req.Text)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("persist prompt %s: %w", name, err))
			return
		}
		resp.Persisted = true
		resp.Path = path
	}
	if err := h.binder.Override(name, req.Text); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeAtomic writes via a temp file in the same directory, then renames.
func writeAtomic(dir, filename, text string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(dir, filename)
	tmp, err := os.CreateTemp(dir, filename+".*.tmp")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", err
	}
	_ = tmp.Chmod(0o644)
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	return dst, nil
}
