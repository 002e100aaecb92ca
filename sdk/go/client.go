package giglinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Gigline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Job represents the API job model (partial).
type Job struct {
	ID              string      `json:"id"`
	CreatorID       string      `json:"creator_id"`
	Title           string      `json:"title"`
	Category        string      `json:"category,omitempty"`
	Status          string      `json:"status"`
	HiredFreelancer *string     `json:"hired_freelancer,omitempty"`
	Milestones      []Milestone `json:"milestones"`
	ProposalCount   int64       `json:"proposal_count"`
}

// Milestone is a unit of work inside a job.
type Milestone struct {
	Title       string  `json:"title"`
	Value       float64 `json:"value"`
	Status      string  `json:"status"`
	Evidence    string  `json:"evidence,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// Proposal represents a freelancer application.
type Proposal struct {
	ID           string   `json:"id"`
	JobID        string   `json:"job_id"`
	FreelancerID string   `json:"freelancer_id"`
	Status       string   `json:"status"`
	BidAmount    *float64 `json:"bid_amount,omitempty"`
	RejectReason string   `json:"reject_reason,omitempty"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	Payload    map[string]any `json:"payload"`
}

// HireResult pairs the accepted proposal with the updated job.
type HireResult struct {
	Proposal Proposal `json:"proposal"`
	Job      Job      `json:"job"`
}

// ApprovalResult carries the job after a milestone approval.
type ApprovalResult struct {
	Job          Job  `json:"job"`
	JobCompleted bool `json:"job_completed"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedJobs wraps job list responses with cursors.
type PaginatedJobs struct {
	Items      []Job  `json:"items"`
	NextCursor string `json:"next_cursor"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreateJob creates a job.
func (c *Client) CreateJob(ctx context.Context, title, category string, budgetMin float64) (Job, error) {
	body := map[string]any{
		"title":      title,
		"category":   category,
		"budget_min": budgetMin,
	}
	var resp Job
	err := c.do(ctx, http.MethodPost, "v1/jobs", body, &resp)
	return resp, err
}

// GetJob fetches a job by id.
func (c *Client) GetJob(ctx context.Context, id string) (Job, error) {
	var resp Job
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("v1/jobs/%s", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// ListJobs returns a page of jobs, optionally filtered by status.
func (c *Client) ListJobs(ctx context.Context, status string, limit int, cursor string) (PaginatedJobs, error) {
	endpoint := "v1/jobs" + queryString(map[string]string{
		"status": status,
		"limit":  intParam(limit),
		"cursor": cursor,
	})
	var resp PaginatedJobs
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// PublishJob moves a draft job to open.
func (c *Client) PublishJob(ctx context.Context, id string) (Job, error) {
	var resp Job
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v1/jobs/%s/publish", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// DeleteJob removes a draft or open job.
func (c *Client) DeleteJob(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("v1/jobs/%s", url.PathEscape(id)), nil, nil)
}

// RequestCancellation opens a cancellation request on an in-progress job.
func (c *Client) RequestCancellation(ctx context.Context, jobID, reason string) (Job, error) {
	body := map[string]any{"reason": reason}
	var resp Job
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v1/jobs/%s/cancellation", url.PathEscape(jobID)), body, &resp)
	return resp, err
}

// RespondCancellation accepts or rejects a pending cancellation.
func (c *Client) RespondCancellation(ctx context.Context, jobID, action string) (Job, error) {
	body := map[string]any{"action": action}
	var resp Job
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v1/jobs/%s/cancellation/respond", url.PathEscape(jobID)), body, &resp)
	return resp, err
}

// SubmitMilestone marks a milestone as submitted for review.
func (c *Client) SubmitMilestone(ctx context.Context, jobID string, index int, evidence string) (Job, error) {
	body := map[string]any{"evidence": evidence}
	var resp Job
	endpoint := fmt.Sprintf("v1/jobs/%s/milestones/%d/submit", url.PathEscape(jobID), index)
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// ApproveMilestone approves a submitted milestone.
func (c *Client) ApproveMilestone(ctx context.Context, jobID string, index int) (ApprovalResult, error) {
	var resp ApprovalResult
	endpoint := fmt.Sprintf("v1/jobs/%s/milestones/%d/approve", url.PathEscape(jobID), index)
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// CreateProposal submits a proposal on an open job.
func (c *Client) CreateProposal(ctx context.Context, jobID, coverLetter string, bid *float64) (Proposal, error) {
	body := map[string]any{
		"job_id":       jobID,
		"cover_letter": coverLetter,
	}
	if bid != nil {
		body["bid_amount"] = *bid
	}
	var resp Proposal
	err := c.do(ctx, http.MethodPost, "v1/proposals", body, &resp)
	return resp, err
}

// AcceptProposal hires the proposal's freelancer.
func (c *Client) AcceptProposal(ctx context.Context, id string) (HireResult, error) {
	var resp HireResult
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v1/proposals/%s/accept", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// RejectProposal declines a pending proposal.
func (c *Client) RejectProposal(ctx context.Context, id, reason string) (Proposal, error) {
	body := map[string]any{"reason": reason}
	var resp Proposal
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v1/proposals/%s/reject", url.PathEscape(id)), body, &resp)
	return resp, err
}

// WithdrawProposal retracts the caller's pending proposal.
func (c *Client) WithdrawProposal(ctx context.Context, id string) (Proposal, error) {
	var resp Proposal
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v1/proposals/%s/withdraw", url.PathEscape(id)), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := "v1/events" + queryString(map[string]string{
		"limit":  intParam(limit),
		"cursor": cursor,
	})
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func queryString(params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		if v != "" {
			values.Set(k, v)
		}
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

func intParam(v int) string {
	if v <= 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}
