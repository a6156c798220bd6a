package docuseal

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	EventFormViewed         = "form.viewed"
	EventFormStarted        = "form.started"
	EventFormCompleted      = "form.completed"
	EventFormDeclined       = "form.declined"
	EventSubmissionExpired  = "submission.expired"
	EventSubmissionComplete = "submission.completed"
)

// WebhookEvent is the body DocuSeal posts to the webhook URL.
// form.* events carry a submitter in Data; submission.* events carry the submission.
type WebhookEvent struct {
	EventType string      `json:"event_type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      WebhookData `json:"data"`
}

type WebhookData struct {
	ID           int64      `json:"id"`
	SubmissionID int64      `json:"submission_id"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	Status       string     `json:"status"`
	OpenedAt     *time.Time `json:"opened_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	DeclinedAt   *time.Time `json:"declined_at"`
	Submission   *struct {
		ID                  int64  `json:"id"`
		Status              string `json:"status"`
		CombinedDocumentURL string `json:"combined_document_url"`
	} `json:"submission"`
}

func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var e WebhookEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, &Error{Code: CodeInvalidRequest, Message: "malformed webhook: " + err.Error()}
	}
	if e.EventType == "" {
		return nil, &Error{Code: CodeInvalidRequest, Message: "webhook has no event_type"}
	}
	return &e, nil
}

// SubmissionID resolves the submission the event refers to.
func (e *WebhookEvent) SubmissionID() int64 {
	switch {
	case strings.HasPrefix(e.EventType, "submission."):
		return e.Data.ID
	case e.Data.SubmissionID != 0:
		return e.Data.SubmissionID
	case e.Data.Submission != nil:
		return e.Data.Submission.ID
	}
	return 0
}
