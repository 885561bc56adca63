package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/checknotify/internal/application"
	"github.com/ericfisherdev/checknotify/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Time    string `json:"time"`
	Polling bool   `json:"polling"`
}

// AddRepoRequest is the JSON body for the add repository endpoint.
type AddRepoRequest struct {
	FullName string `json:"full_name"`
}

// RepoResponse is the JSON representation of a watched repository. The
// schedule fields are set once the repository was polled with adaptive
// polling enabled.
type RepoResponse struct {
	FullName     string `json:"full_name"`
	Owner        string `json:"owner"`
	Name         string `json:"name"`
	AddedAt      string `json:"added_at"`
	ActivityTier string `json:"activity_tier,omitempty"`
	LastPolledAt string `json:"last_polled_at,omitempty"`
	NextPollAt   string `json:"next_poll_at,omitempty"`
}

// ChangeResponse is the JSON representation of a tracked change.
type ChangeResponse struct {
	Repository    string `json:"repository"`
	Change        int    `json:"change"`
	PatchSet      int    `json:"patch_set"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	URL           string `json:"url"`
	HeadSHA       string `json:"head_sha"`
	BaseBranch    string `json:"base_branch"`
	CombinedState string `json:"combined_state"`
	UpdatedAt     string `json:"updated_at"`
}

// CheckResponse is one check of a patch set joined with its checker.
// Checker fields are empty when the checker is unknown.
type CheckResponse struct {
	CheckerUUID string  `json:"checker_uuid"`
	CheckerName string  `json:"checker_name"`
	Required    bool    `json:"required"`
	State       string  `json:"state"`
	Message     *string `json:"message,omitempty"`
	URL         *string `json:"url,omitempty"`
	UpdatedAt   string  `json:"updated_at"`
}

// PatchSetChecksResponse lists the checks of one patch set.
type PatchSetChecksResponse struct {
	Repository    string          `json:"repository"`
	Change        int             `json:"change"`
	PatchSet      int             `json:"patch_set"`
	CombinedState string          `json:"combined_state"`
	Checks        []CheckResponse `json:"checks"`
}

// PreviewRequest is the optional JSON body of the notification preview
// endpoint. Empty states default to the change's stored combined state.
type PreviewRequest struct {
	OldState string `json:"old_state"`
	NewState string `json:"new_state"`
	Checker  string `json:"checker"`
}

// OutgoingEmailResponse is the JSON representation of a composed email.
type OutgoingEmailResponse struct {
	ID          string                `json:"id"`
	MessageType string                `json:"message_type"`
	Repository  string                `json:"repository"`
	Change      int                   `json:"change"`
	PatchSet    int                   `json:"patch_set"`
	Policy      model.RecipientPolicy `json:"policy"`
	Subject     string                `json:"subject"`
	TextBody    string                `json:"text_body"`
	HTMLBody    string                `json:"html_body,omitempty"`
	Payload     json.RawMessage       `json:"payload"`
	Status      string                `json:"status"`
	CreatedAt   string                `json:"created_at"`
	SentAt      string                `json:"sent_at,omitempty"`
}

func toRepoResponse(repo model.Repository) RepoResponse {
	return RepoResponse{
		FullName: repo.FullName,
		Owner:    repo.Owner,
		Name:     repo.Name,
		AddedAt:  repo.AddedAt.UTC().Format(time.RFC3339),
	}
}

func withSchedule(resp RepoResponse, info application.ScheduleInfo) RepoResponse {
	resp.ActivityTier = info.Tier.String()
	resp.LastPolledAt = info.LastPolled.UTC().Format(time.RFC3339)
	resp.NextPollAt = info.NextPollAt.UTC().Format(time.RFC3339)
	return resp
}

func toChangeResponse(c model.Change) ChangeResponse {
	return ChangeResponse{
		Repository:    c.Repository,
		Change:        c.ChangeID,
		PatchSet:      c.PatchSet,
		Title:         c.Title,
		Author:        c.Author,
		URL:           c.URL,
		HeadSHA:       c.HeadSHA,
		BaseBranch:    c.BaseBranch,
		CombinedState: string(c.CombinedState),
		UpdatedAt:     c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toCheckResponse(check model.Check, checker *model.Checker) CheckResponse {
	resp := CheckResponse{
		CheckerUUID: string(check.Key.CheckerUUID),
		State:       string(check.State),
		Message:     check.Message,
		URL:         check.URL,
		UpdatedAt:   check.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if checker != nil {
		resp.CheckerName = checker.Name
		resp.Required = checker.Required
	}
	return resp
}

func toOutgoingEmailResponse(e model.OutgoingEmail) OutgoingEmailResponse {
	resp := OutgoingEmailResponse{
		ID:          e.ID,
		MessageType: e.MessageType,
		Repository:  e.Repository,
		Change:      e.PatchSet.ChangeID,
		PatchSet:    e.PatchSet.Number,
		Policy:      e.Policy,
		Subject:     e.Subject,
		TextBody:    e.TextBody,
		HTMLBody:    e.HTMLBody,
		Payload:     e.Payload,
		Status:      string(e.Status),
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
	if len(resp.Payload) == 0 {
		resp.Payload = json.RawMessage("{}")
	}
	if !e.SentAt.IsZero() {
		resp.SentAt = e.SentAt.UTC().Format(time.RFC3339)
	}
	return resp
}
