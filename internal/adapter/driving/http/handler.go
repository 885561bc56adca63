package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/checknotify/internal/application"
	"github.com/ericfisherdev/checknotify/internal/domain/model"
	"github.com/ericfisherdev/checknotify/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	ctx          context.Context // bounds work that outlives a request
	repoStore    driven.RepoStore
	changeStore  driven.ChangeStore
	checkerStore driven.CheckerStore
	checkStore   driven.CheckStore
	outbox       driven.OutboxStore
	pollSvc      *application.PollService // nil when polling is disabled
	notifySvc    *application.NotifyService
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. ctx should live
// as long as the server; background refreshes stop with it. pollSvc may be
// nil, in which case refresh requests are rejected.
func NewHandler(
	ctx context.Context,
	repoStore driven.RepoStore,
	changeStore driven.ChangeStore,
	checkerStore driven.CheckerStore,
	checkStore driven.CheckStore,
	outbox driven.OutboxStore,
	pollSvc *application.PollService,
	notifySvc *application.NotifyService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		ctx:          ctx,
		repoStore:    repoStore,
		changeStore:  changeStore,
		checkerStore: checkerStore,
		checkStore:   checkStore,
		outbox:       outbox,
		pollSvc:      pollSvc,
		notifySvc:    notifySvc,
		logger:       logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("GET /api/v1/repos", h.ListRepos)
	mux.HandleFunc("POST /api/v1/repos", h.AddRepo)
	mux.HandleFunc("DELETE /api/v1/repos/{owner}/{repo}", h.RemoveRepo)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/refresh", h.RefreshRepo)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/changes", h.ListChanges)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/changes/{change}/checks", h.GetChecks)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/changes/{change}/notifications/preview", h.PreviewNotification)

	mux.HandleFunc("GET /api/v1/outbox", h.ListOutbox)
	mux.HandleFunc("GET /api/v1/outbox/{id}", h.GetOutboxEmail)
	mux.HandleFunc("POST /api/v1/outbox/{id}/sent", h.MarkOutboxEmailSent)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Time:    time.Now().UTC().Format(time.RFC3339),
		Polling: h.pollSvc != nil,
	})
}

// ListRepos returns all watched repositories.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	repos, err := h.repoStore.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list repos", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RepoResponse, 0, len(repos))
	for _, repo := range repos {
		resp = append(resp, h.repoResponse(repo))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddRepo adds a repository to the watch list and triggers an async refresh.
func (h *Handler) AddRepo(w http.ResponseWriter, r *http.Request) {
	var req AddRepoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	repo, ok := model.ParseRepository(req.FullName)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid repository name: expected owner/repo format")
		return
	}
	repo.AddedAt = time.Now().UTC()

	if err := h.repoStore.Add(r.Context(), repo); err != nil {
		if errors.Is(err, driven.ErrRepoAlreadyExists) {
			writeError(w, http.StatusConflict, "repository already exists")
			return
		}
		h.logger.Error("failed to add repo", "repo", repo.FullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	// The request context ends with the response, so the refresh runs on the
	// server's context instead.
	if h.pollSvc != nil {
		go func() {
			if err := h.pollSvc.RefreshRepo(h.ctx, repo.FullName); err != nil {
				h.logger.Error("async repo refresh failed", "repo", repo.FullName, "error", err)
			}
		}()
	}

	writeJSON(w, http.StatusCreated, toRepoResponse(repo))
}

// RemoveRepo removes a repository from the watch list together with its
// tracked changes and checks.
func (h *Handler) RemoveRepo(w http.ResponseWriter, r *http.Request) {
	fullName := repoFullName(r)

	if err := h.repoStore.Remove(r.Context(), fullName); err != nil {
		if errors.Is(err, driven.ErrRepoNotFound) {
			writeError(w, http.StatusNotFound, "repository not found")
			return
		}
		h.logger.Error("failed to remove repo", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RefreshRepo polls one repository immediately and waits for the result.
func (h *Handler) RefreshRepo(w http.ResponseWriter, r *http.Request) {
	if h.pollSvc == nil {
		writeError(w, http.StatusServiceUnavailable, "polling is disabled: no GitHub token configured")
		return
	}

	repo, ok := h.lookupRepo(w, r)
	if !ok {
		return
	}

	if err := h.pollSvc.RefreshRepo(r.Context(), repo.FullName); err != nil {
		h.logger.Error("repo refresh failed", "repo", repo.FullName, "error", err)
		writeError(w, http.StatusBadGateway, "refresh failed")
		return
	}

	writeJSON(w, http.StatusOK, h.repoResponse(*repo))
}

// ListChanges returns the tracked open changes of a repository.
func (h *Handler) ListChanges(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.lookupRepo(w, r)
	if !ok {
		return
	}

	changes, err := h.changeStore.ListByRepository(r.Context(), repo.FullName)
	if err != nil {
		h.logger.Error("failed to list changes", "repo", repo.FullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ChangeResponse, 0, len(changes))
	for _, c := range changes {
		resp = append(resp, toChangeResponse(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetChecks returns the checks of a change's patch set. The optional
// patch_set query parameter selects an older patch set; the default is the
// current one.
func (h *Handler) GetChecks(w http.ResponseWriter, r *http.Request) {
	change, ok := h.lookupChange(w, r)
	if !ok {
		return
	}

	patchSet := change.CurrentPatchSet()
	if raw := r.URL.Query().Get("patch_set"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > change.PatchSet {
			writeError(w, http.StatusBadRequest, "invalid patch set")
			return
		}
		patchSet.Number = n
	}

	checks, err := h.checkStore.GetChecksForPatchSet(r.Context(), change.Repository, patchSet)
	if err != nil {
		h.logger.Error("failed to get checks", "repo", change.Repository, "change", change.ChangeID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	checkers, err := h.checkerStore.ListByRepository(r.Context(), change.Repository)
	if err != nil {
		h.logger.Error("failed to list checkers", "repo", change.Repository, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	byUUID := make(map[model.CheckerUUID]*model.Checker, len(checkers))
	for i := range checkers {
		byUUID[checkers[i].UUID] = &checkers[i]
	}

	resp := PatchSetChecksResponse{
		Repository: change.Repository,
		Change:     change.ChangeID,
		PatchSet:   patchSet.Number,
		Checks:     make([]CheckResponse, 0, len(checks)),
	}
	if patchSet == change.CurrentPatchSet() {
		resp.CombinedState = string(change.CombinedState)
	}
	for _, check := range checks {
		resp.Checks = append(resp.Checks, toCheckResponse(check, byUUID[check.Key.CheckerUUID]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// PreviewNotification composes the combined check state notification of a
// change's current patch set without enqueuing it.
func (h *Handler) PreviewNotification(w http.ResponseWriter, r *http.Request) {
	change, ok := h.lookupChange(w, r)
	if !ok {
		return
	}

	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	update := model.CombinedCheckStateUpdate{
		Change:      *change,
		OldState:    model.CombinedCheckState(req.OldState),
		NewState:    model.CombinedCheckState(req.NewState),
		TriggeredBy: model.CheckerUUID(req.Checker),
	}
	if update.OldState == "" {
		update.OldState = change.CombinedState
	}
	if update.NewState == "" {
		update.NewState = change.CombinedState
	}
	if !update.OldState.IsValid() || !update.NewState.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid combined check state")
		return
	}

	email, err := h.notifySvc.Preview(r.Context(), update)
	if err != nil {
		if errors.Is(err, application.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to preview notification", "repo", change.Repository, "change", change.ChangeID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toOutgoingEmailResponse(*email))
}

// ListOutbox returns pending emails oldest first. The optional limit query
// parameter caps the result.
func (h *Handler) ListOutbox(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	emails, err := h.outbox.ListPending(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list outbox", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]OutgoingEmailResponse, 0, len(emails))
	for _, e := range emails {
		resp = append(resp, toOutgoingEmailResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetOutboxEmail returns a single outgoing email.
func (h *Handler) GetOutboxEmail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	email, err := h.outbox.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, driven.ErrOutboxEmailNotFound) {
			writeError(w, http.StatusNotFound, "outgoing email not found")
			return
		}
		h.logger.Error("failed to get outgoing email", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toOutgoingEmailResponse(*email))
}

// MarkOutboxEmailSent records delivery of an outgoing email.
func (h *Handler) MarkOutboxEmailSent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.outbox.MarkSent(r.Context(), id); err != nil {
		if errors.Is(err, driven.ErrOutboxEmailNotFound) {
			writeError(w, http.StatusNotFound, "outgoing email not found")
			return
		}
		h.logger.Error("failed to mark email sent", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) repoResponse(repo model.Repository) RepoResponse {
	resp := toRepoResponse(repo)
	if h.pollSvc == nil {
		return resp
	}
	if info, ok := h.pollSvc.Schedule(repo.FullName); ok {
		resp = withSchedule(resp, info)
	}
	return resp
}

// lookupRepo resolves the {owner}/{repo} path values to a watched repository,
// writing the error response itself when it returns false.
func (h *Handler) lookupRepo(w http.ResponseWriter, r *http.Request) (*model.Repository, bool) {
	fullName := repoFullName(r)

	repo, err := h.repoStore.GetByFullName(r.Context(), fullName)
	if err != nil {
		h.logger.Error("failed to get repo", "repo", fullName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	if repo == nil {
		writeError(w, http.StatusNotFound, "repository not found")
		return nil, false
	}
	return repo, true
}

// lookupChange resolves the {owner}/{repo}/changes/{change} path values to a
// tracked change, writing the error response itself when it returns false.
func (h *Handler) lookupChange(w http.ResponseWriter, r *http.Request) (*model.Change, bool) {
	changeID, err := strconv.Atoi(r.PathValue("change"))
	if err != nil || changeID < 1 {
		writeError(w, http.StatusBadRequest, "invalid change number")
		return nil, false
	}

	fullName := repoFullName(r)

	change, err := h.changeStore.Get(r.Context(), fullName, changeID)
	if err != nil {
		h.logger.Error("failed to get change", "repo", fullName, "change", changeID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}
	if change == nil {
		writeError(w, http.StatusNotFound, "change not found")
		return nil, false
	}
	return change, true
}

func repoFullName(r *http.Request) string {
	return r.PathValue("owner") + "/" + r.PathValue("repo")
}
