package api

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

type folderFilesResponse struct {
	Folder string   `json:"folder"`
	Files  []string `json:"files"`
}

// FolderByName handles GET /api/folders/{name}/files: the union of committed
// segment filenames and in-progress markers, so callers can see uploads that
// have been accepted but not yet committed. The folder record is created on
// first access.
func (h *Handler) FolderByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	if _, err := h.requireAPIKey(r); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/folders/")
	name, suffix, ok := strings.Cut(rest, "/")
	if !ok || suffix != "files" {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown folder resource"))
		return
	}
	folderName, err := url.PathUnescape(name)
	if err != nil || strings.TrimSpace(folderName) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid folder name"))
		return
	}

	ctx := r.Context()
	folder, err := h.Store.EnsureFolder(ctx, folderName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("ensure folder: %w", err))
		return
	}
	committed, err := h.Store.ListSegmentFilenames(ctx, folder.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("list segments: %w", err))
		return
	}
	pending, err := h.Store.ListJobsInProgress(ctx, folder.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("list pending uploads: %w", err))
		return
	}

	seen := make(map[string]struct{}, len(committed)+len(pending))
	files := make([]string, 0, len(committed)+len(pending))
	for _, filename := range committed {
		if _, dup := seen[filename]; !dup {
			seen[filename] = struct{}{}
			files = append(files, filename)
		}
	}
	for _, job := range pending {
		if _, dup := seen[job.Filename]; !dup {
			seen[job.Filename] = struct{}{}
			files = append(files, job.Filename)
		}
	}
	sort.Strings(files)

	writeJSON(w, http.StatusOK, folderFilesResponse{Folder: folder.Name, Files: files})
}
