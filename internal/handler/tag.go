package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippet-share/internal/model"
	"github.com/sakif/snippet-share/internal/service"
)

// TagHandler serves the tag endpoints.
type TagHandler struct {
	tags   *service.TagService
	logger *slog.Logger
}

// NewTagHandler creates a new TagHandler.
func NewTagHandler(tags *service.TagService, logger *slog.Logger) *TagHandler {
	return &TagHandler{tags: tags, logger: logger}
}

type tagRequest struct {
	Name string `json:"name"`
}

// bulkTagRequest is {"tags": [{"name": "go"}, {"name": "rust"}]}.
type bulkTagRequest struct {
	Tags []tagRequest `json:"tags"`
}

type bulkTagResponse struct {
	Message string       `json:"message"`
	Tags    []*model.Tag `json:"tags"`
}

// HandleCreate adds one tag.
//
// HTTP: POST /create-tag → 201 + tag
func (h *TagHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tag, err := h.tags.Create(r.Context(), callerID(r), req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

// HandleBulkCreate adds a batch of tags in one transaction. Admin only.
//
// HTTP: POST /bulk-tags → 201 {message, tags}
func (h *TagHandler) HandleBulkCreate(w http.ResponseWriter, r *http.Request) {
	var req bulkTagRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	names := make([]string, 0, len(req.Tags))
	for _, t := range req.Tags {
		names = append(names, t.Name)
	}

	tags, err := h.tags.BulkCreate(r.Context(), callerID(r), names)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, bulkTagResponse{
		Message: "Tags added successfully",
		Tags:    tags,
	})
}

// HandleList returns every tag.
//
// HTTP: GET /get-tags
func (h *TagHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// HandleGet returns one tag. A malformed id is a 404.
//
// HTTP: GET /tag/{id}
func (h *TagHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	tag, err := h.tags.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

// HandleDelete removes a tag. Snippets referencing it keep the reference.
//
// HTTP: DELETE /tag/{id}
func (h *TagHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.tags.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Tag deleted successfully")
}
