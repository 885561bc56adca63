// Package github implements the CheckSource port on the GitHub REST API using
// the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/checknotify/internal/domain/model"
	"github.com/ericfisherdev/checknotify/internal/domain/port/driven"
)

var _ driven.CheckSource = (*Client)(nil)

// Checker UUID schemes. Check runs are reported by GitHub Apps, commit
// statuses by a free-form context string.
const (
	schemeCheckRun = "github"
	schemeStatus   = "status"
)

// Client implements the driven.CheckSource port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client, PAT auth when token is set)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)

	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// FetchOpenChanges lists the open pull requests of a repository as changes,
// most recently updated first. Pagination is handled automatically.
func (c *Client) FetchOpenChanges(ctx context.Context, repoFullName string) ([]model.Change, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.PullRequestListOptions{
		State:       "open",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	changes := []model.Change{}

	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing pull requests for %s (page %d): %w", repoFullName, opts.Page, err)
		}

		logRateLimit(resp, repoFullName+"/pulls", opts.Page, len(prs))

		for _, pr := range prs {
			changes = append(changes, mapPullRequest(pr, repoFullName))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return changes, nil
}

// FetchChecks returns the check runs and commit statuses reported for the
// change's head SHA. Checkers named by the base branch's required status
// checks are marked required. Any lookup failure fails the whole fetch, since
// a partial set would be taken for the complete one.
func (c *Client) FetchChecks(ctx context.Context, change model.Change) ([]model.CheckerCheck, error) {
	owner, repo, err := splitRepo(change.Repository)
	if err != nil {
		return nil, err
	}

	required, err := c.requiredContexts(ctx, owner, repo, change.BaseBranch)
	if err != nil {
		return nil, err
	}

	runs, err := c.listCheckRuns(ctx, owner, repo, change.HeadSHA)
	if err != nil {
		return nil, err
	}

	patchSet := change.CurrentPatchSet()
	seen := make(map[model.CheckerUUID]bool, len(runs))
	pairs := make([]model.CheckerCheck, 0, len(runs))

	for _, cr := range runs {
		cc := mapCheckRun(cr, change.Repository, patchSet, required)
		if seen[cc.Checker.UUID] {
			continue
		}
		seen[cc.Checker.UUID] = true
		pairs = append(pairs, cc)
	}

	statuses, err := c.listStatuses(ctx, owner, repo, change.HeadSHA)
	if err != nil {
		return nil, err
	}
	for _, st := range statuses {
		cc := mapStatus(st, change.Repository, patchSet, required)
		if seen[cc.Checker.UUID] {
			continue
		}
		seen[cc.Checker.UUID] = true
		pairs = append(pairs, cc)
	}

	return pairs, nil
}

func (c *Client) listCheckRuns(ctx context.Context, owner, repo, ref string) ([]*gh.CheckRun, error) {
	opts := &gh.ListCheckRunsOptions{
		Filter:      gh.Ptr("latest"),
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var all []*gh.CheckRun

	for {
		result, resp, err := c.gh.Checks.ListCheckRunsForRef(ctx, owner, repo, ref, opts)
		if err != nil {
			return nil, fmt.Errorf("listing check runs for %s/%s@%s (page %d): %w", owner, repo, ref, opts.Page, err)
		}

		logRateLimit(resp, owner+"/"+repo+"/check-runs", opts.Page, len(result.CheckRuns))
		all = append(all, result.CheckRuns...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

func (c *Client) listStatuses(ctx context.Context, owner, repo, ref string) ([]*gh.RepoStatus, error) {
	opts := &gh.ListOptions{PerPage: 100}

	var all []*gh.RepoStatus

	for {
		cs, resp, err := c.gh.Repositories.GetCombinedStatus(ctx, owner, repo, ref, opts)
		if err != nil {
			return nil, fmt.Errorf("fetching combined status for %s/%s@%s (page %d): %w", owner, repo, ref, opts.Page, err)
		}

		logRateLimit(resp, owner+"/"+repo+"/status", opts.Page, len(cs.Statuses))
		all = append(all, cs.Statuses...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// requiredContexts returns the required status check contexts of a branch.
// An unprotected branch (404) or missing permission (403) yields an empty set.
func (c *Client) requiredContexts(ctx context.Context, owner, repo, branch string) (map[string]bool, error) {
	if branch == "" {
		return nil, nil
	}

	checks, resp, err := c.gh.Repositories.GetRequiredStatusChecks(ctx, owner, repo, branch)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching required status checks for %s/%s branch %s: %w", owner, repo, branch, err)
	}

	logRateLimit(resp, owner+"/"+repo+"/required-checks", 0, 0)

	required := make(map[string]bool)
	for _, check := range checks.GetChecks() {
		required[check.Context] = true
	}

	return required, nil
}

// mapCheckRun converts a go-github CheckRun into a checker and its check.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapCheckRun(cr *gh.CheckRun, repoFullName string, patchSet model.PatchSetID, required map[string]bool) model.CheckerCheck {
	app := cr.GetApp()
	slug := app.GetSlug()
	if slug == "" {
		slug = "unknown"
	}

	uuid := model.CheckerUUID(schemeCheckRun + ":" + slug + "/" + cr.GetName())

	updatedAt := cr.GetCompletedAt().Time
	if updatedAt.IsZero() {
		updatedAt = cr.GetStartedAt().Time
	}

	return model.CheckerCheck{
		Checker: model.Checker{
			UUID:        uuid,
			Name:        cr.GetName(),
			Repository:  repoFullName,
			Description: nonEmpty(app.GetDescription()),
			URL:         nonEmpty(app.GetHTMLURL()),
			Required:    required[cr.GetName()],
		},
		Check: model.Check{
			Key: model.CheckKey{
				Repository:  repoFullName,
				PatchSet:    patchSet,
				CheckerUUID: uuid,
			},
			State:     mapCheckRunState(cr.GetStatus(), cr.GetConclusion()),
			Message:   nonEmpty(cr.GetOutput().GetTitle()),
			URL:       nonEmpty(cr.GetDetailsURL()),
			UpdatedAt: updatedAt,
		},
	}
}

// mapCheckRunState maps a check run's status and conclusion to a CheckState.
func mapCheckRunState(status, conclusion string) model.CheckState {
	switch status {
	case "queued":
		return model.CheckStateScheduled
	case "in_progress":
		return model.CheckStateRunning
	case "pending", "waiting", "requested":
		return model.CheckStateNotStarted
	}

	switch conclusion {
	case "success":
		return model.CheckStateSuccessful
	case "neutral", "skipped":
		return model.CheckStateNotRelevant
	default:
		return model.CheckStateFailed
	}
}

// mapStatus converts a legacy commit status into a checker and its check.
func mapStatus(st *gh.RepoStatus, repoFullName string, patchSet model.PatchSetID, required map[string]bool) model.CheckerCheck {
	uuid := model.CheckerUUID(schemeStatus + ":" + st.GetContext())

	return model.CheckerCheck{
		Checker: model.Checker{
			UUID:       uuid,
			Name:       st.GetContext(),
			Repository: repoFullName,
			Required:   required[st.GetContext()],
		},
		Check: model.Check{
			Key: model.CheckKey{
				Repository:  repoFullName,
				PatchSet:    patchSet,
				CheckerUUID: uuid,
			},
			State:     mapStatusState(st.GetState()),
			Message:   nonEmpty(st.GetDescription()),
			URL:       nonEmpty(st.GetTargetURL()),
			UpdatedAt: st.GetUpdatedAt().Time,
		},
	}
}

func mapStatusState(state string) model.CheckState {
	switch state {
	case "pending":
		return model.CheckStateRunning
	case "success":
		return model.CheckStateSuccessful
	default:
		return model.CheckStateFailed
	}
}

// mapPullRequest converts a go-github PullRequest to a change. PatchSet and
// CombinedState are tracked by the caller.
func mapPullRequest(pr *gh.PullRequest, repoFullName string) model.Change {
	return model.Change{
		Repository: repoFullName,
		ChangeID:   pr.GetNumber(),
		Title:      pr.GetTitle(),
		Author:     pr.GetUser().GetLogin(),
		URL:        pr.GetHTMLURL(),
		HeadSHA:    pr.GetHead().GetSHA(),
		BaseBranch: pr.GetBase().GetRef(),
		UpdatedAt:  pr.GetUpdatedAt().Time,
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	owner, repo, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return owner, repo, nil
}
