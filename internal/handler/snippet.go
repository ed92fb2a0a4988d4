package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/snippet-share/internal/apperror"
	"github.com/sakif/snippet-share/internal/auth"
	"github.com/sakif/snippet-share/internal/model"
	"github.com/sakif/snippet-share/internal/query"
	"github.com/sakif/snippet-share/internal/service"
)

// SnippetHandler serves the snippet endpoints.
//
// Each method decodes the request, reads the caller's identity from the
// context once, and passes plain values to the service. Status codes come
// from writeError.
type SnippetHandler struct {
	snippets *service.SnippetService
	logger   *slog.Logger
}

// NewSnippetHandler creates a new SnippetHandler.
func NewSnippetHandler(snippets *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{snippets: snippets, logger: logger}
}

// snippetRequest is the create/update body.
//
// IsPublic is a pointer so "absent" and "false" can be told apart.
type snippetRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Code        string   `json:"code"`
	Language    string   `json:"language"`
	Tags        []string `json:"tags"`
	IsPublic    *bool    `json:"isPublic"`
}

func (req snippetRequest) input() service.SnippetInput {
	return service.SnippetInput{
		Title:       req.Title,
		Description: req.Description,
		Code:        req.Code,
		Language:    req.Language,
		Tags:        req.Tags,
		IsPublic:    req.IsPublic,
	}
}

// HandleCreate stores a new snippet for the caller.
//
// HTTP: POST /create-snippet → 201 + snippet
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	snippet, err := h.snippets.Create(r.Context(), callerID(r), req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, snippet)
}

// HandleListPublic lists public snippets.
//
// HTTP: GET /snippets/public?page&limit&userId&tagId&search
func (h *SnippetHandler) HandleListPublic(w http.ResponseWriter, r *http.Request) {
	page, err := h.snippets.ListPublic(r.Context(), query.ParseParams(r.URL.Query()))
	h.respondPage(w, r, page, err)
}

// HandleListPopular samples the most-liked public snippets.
//
// HTTP: GET /snippets/popular?page&limit&tagId&search
func (h *SnippetHandler) HandleListPopular(w http.ResponseWriter, r *http.Request) {
	page, err := h.snippets.ListPopular(r.Context(), query.ParseParams(r.URL.Query()))
	h.respondPage(w, r, page, err)
}

// HandleListMine lists the caller's snippets, public and private.
//
// HTTP: GET /snippets
func (h *SnippetHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	page, err := h.snippets.ListMine(r.Context(), callerID(r), query.ParseParams(r.URL.Query()))
	h.respondPage(w, r, page, err)
}

// HandleListLiked lists snippets the caller liked.
//
// HTTP: GET /snippets/liked
func (h *SnippetHandler) HandleListLiked(w http.ResponseWriter, r *http.Request) {
	page, err := h.snippets.ListLiked(r.Context(), callerID(r), query.ParseParams(r.URL.Query()))
	h.respondPage(w, r, page, err)
}

// HandleListBookmarked lists snippets the caller bookmarked.
//
// HTTP: GET /snippets/bookmarked
func (h *SnippetHandler) HandleListBookmarked(w http.ResponseWriter, r *http.Request) {
	page, err := h.snippets.ListBookmarked(r.Context(), callerID(r), query.ParseParams(r.URL.Query()))
	h.respondPage(w, r, page, err)
}

// HandleGetPublic returns one public snippet, or null.
//
// HTTP: GET /snippet/public/{id}
//
// A missing or private snippet is 200 with a null body, not 404.
func (h *SnippetHandler) HandleGetPublic(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.snippets.GetPublic(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, apperror.ErrNotFound) {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleGetOwned returns one of the caller's snippets, or null.
//
// HTTP: GET /snippet/{id}
func (h *SnippetHandler) HandleGetOwned(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.snippets.GetOwned(r.Context(), callerID(r), chi.URLParam(r, "id"))
	if errors.Is(err, apperror.ErrNotFound) {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleUpdate applies a partial update to a snippet the caller owns.
//
// HTTP: PATCH /snippet/{id}
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	snippet, err := h.snippets.Update(r.Context(), callerID(r), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleDelete removes a snippet the caller owns.
//
// HTTP: DELETE /snippet/{id}
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.snippets.Delete(r.Context(), callerID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeMessage(w, http.StatusOK, "Snippet deleted successfully")
}

// HandleToggleLike likes or unlikes a snippet.
//
// HTTP: PATCH /snippet/like/{id}
func (h *SnippetHandler) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	result, err := h.snippets.ToggleLike(r.Context(), callerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleToggleBookmark bookmarks or unbookmarks a snippet.
//
// HTTP: PATCH /snippet/bookmark/{id}
func (h *SnippetHandler) HandleToggleBookmark(w http.ResponseWriter, r *http.Request) {
	result, err := h.snippets.ToggleBookmark(r.Context(), callerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleLeaderboard returns the top contributors.
//
// HTTP: GET /leaderboard
func (h *SnippetHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.snippets.Leaderboard(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *SnippetHandler) respondPage(w http.ResponseWriter, r *http.Request, page *model.SnippetPage, err error) {
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// callerID is the authenticated user's ID, or "" for anonymous requests.
// The service turns "" into a 401 where identity is required.
func callerID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}
