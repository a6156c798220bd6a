// Package docuseal is a small client for the DocuSeal e-signature API.
// It covers what onboarding needs: templates, submissions, reminders and signing links.
package docuseal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const maxBody = 4 << 20

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	// Retries is the number of extra attempts for SERVICE_UNAVAILABLE failures.
	Retries int

	initialInterval time.Duration
}

func New(baseURL, apiKey string, timeout time.Duration, retries int) *Client {
	return &Client{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		APIKey:          apiKey,
		HTTP:            &http.Client{Timeout: timeout},
		Retries:         retries,
		initialInterval: 500 * time.Millisecond,
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool { return c != nil && c.APIKey != "" }

type TemplateRole struct {
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

type Template struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Submitters []TemplateRole `json:"submitters"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Submitter is one signer of a submission as DocuSeal reports it.
// Status is one of awaiting, sent, opened, completed, declined.
type Submitter struct {
	ID           int64      `json:"id"`
	SubmissionID int64      `json:"submission_id"`
	UUID         string     `json:"uuid"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	SentAt       *time.Time `json:"sent_at"`
	OpenedAt     *time.Time `json:"opened_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	DeclinedAt   *time.Time `json:"declined_at"`
	EmbedSrc     string     `json:"embed_src"`
}

type SubmissionDocument struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Submission status is one of pending, completed, declined, expired.
type Submission struct {
	ID                  int64                `json:"id"`
	Status              string               `json:"status"`
	Submitters          []Submitter          `json:"submitters"`
	Documents           []SubmissionDocument `json:"documents"`
	CombinedDocumentURL string               `json:"combined_document_url"`
	ExpireAt            *time.Time           `json:"expire_at"`
	CompletedAt         *time.Time           `json:"completed_at"`
	CreatedAt           time.Time            `json:"created_at"`
}

// NewSubmitter names a template role and who fills it.
type NewSubmitter struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	var out struct {
		Data []Template `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/templates?limit=100", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) GetTemplate(ctx context.Context, id int64) (*Template, error) {
	var t Template
	if err := c.do(ctx, http.MethodGet, "/templates/"+strconv.FormatInt(id, 10), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateSubmission starts signing of a template. DocuSeal answers with the created
// submitters; they are folded back into a Submission.
func (c *Client) CreateSubmission(ctx context.Context, templateID int64, submitters []NewSubmitter, sendEmail bool) (*Submission, error) {
	in := struct {
		TemplateID int64          `json:"template_id"`
		SendEmail  bool           `json:"send_email"`
		Submitters []NewSubmitter `json:"submitters"`
	}{templateID, sendEmail, submitters}
	var created []Submitter
	if err := c.do(ctx, http.MethodPost, "/submissions", in, &created); err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, &Error{Code: CodeInvalidRequest, Message: "no submitters created"}
	}
	return &Submission{ID: created[0].SubmissionID, Status: "pending", Submitters: created}, nil
}

func (c *Client) GetSubmission(ctx context.Context, id int64) (*Submission, error) {
	var s Submission
	if err := c.do(ctx, http.MethodGet, "/submissions/"+strconv.FormatInt(id, 10), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SendReminder asks DocuSeal to email the signing request to the submitter again.
func (c *Client) SendReminder(ctx context.Context, submitterID int64) error {
	in := map[string]bool{"send_email": true}
	return c.do(ctx, http.MethodPut, "/submitters/"+strconv.FormatInt(submitterID, 10), in, nil)
}

// SigningURL returns the embed link of the submitter filling role.
func SigningURL(s *Submission, role string) (string, error) {
	for _, sub := range s.Submitters {
		if strings.EqualFold(sub.Role, role) {
			if sub.EmbedSrc == "" {
				return "", &Error{Code: CodeInvalidRequest, Message: fmt.Sprintf("submitter %q has no signing link", role)}
			}
			return sub.EmbedSrc, nil
		}
	}
	return "", &Error{Code: CodeInvalidRequest, Message: fmt.Sprintf("submission %d has no %q signer", s.ID, role)}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if !c.Configured() {
		return &Error{Code: CodeUnauthorized, Message: "api key is not configured"}
	}
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("docuseal: encode request: %w", err)
		}
		payload = b
	}
	target := c.BaseURL + path

	op := func() (struct{}, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("X-Auth-Token", c.APIKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.HTTP.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return struct{}{}, backoff.Permanent(ctx.Err())
			}
			return struct{}{}, &Error{Code: CodeServiceUnavailable, Message: err.Error()}
		}
		defer resp.Body.Close()
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return struct{}{}, &Error{Code: CodeServiceUnavailable, Status: resp.StatusCode, Message: err.Error()}
		}
		if resp.StatusCode >= 300 {
			e := classify(resp.StatusCode, raw)
			if e.Temporary() {
				return struct{}{}, e
			}
			return struct{}{}, backoff.Permanent(e)
		}
		if out != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, out); err != nil {
				return struct{}{}, backoff.Permanent(&Error{Code: CodeServiceUnavailable, Status: resp.StatusCode, Message: "malformed response: " + err.Error()})
			}
		}
		return struct{}{}, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	if b.InitialInterval <= 0 {
		b.InitialInterval = 500 * time.Millisecond
	}
	tries := uint(1)
	if idempotent(method) {
		tries += uint(max(c.Retries, 0))
	}
	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(tries),
	)
	return err
}

// idempotent methods are retried on SERVICE_UNAVAILABLE. A POST may have
// created a submission before the failure, so it is sent once.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}
