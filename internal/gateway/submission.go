package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/gilang-arya/crew-dispatch-api/pkg/errors"
)

// Submission is the payload pushed to the external booking system when an
// approved proposal is committed.
type Submission struct {
	ProposalID string    `json:"proposal_id"`
	EventID    string    `json:"event_id"`
	EmployeeID string    `json:"employee_id"`
	Category   string    `json:"category"`
	StartAt    time.Time `json:"start_at"`
}

// Client talks to the booking gateway over HTTP. Every submission carries the
// proposal id as idempotency key so a retried commit never double-books.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a gateway client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Submit pushes one booking. A non-2xx response or transport failure returns
// ErrGateway; the caller keeps the proposal approved and retries later.
func (c *Client) Submit(ctx context.Context, submission Submission) error {
	payload, err := json.Marshal(submission)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bookings", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", submission.ProposalID)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("submission transport failure",
			zap.String("proposal_id", submission.ProposalID),
			zap.Error(err),
		)
		return appErrors.Wrap(err, appErrors.ErrGateway.Code, appErrors.ErrGateway.Status, "submission gateway unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("submission rejected",
			zap.String("proposal_id", submission.ProposalID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return appErrors.Wrap(
			fmt.Errorf("gateway returned %d", resp.StatusCode),
			appErrors.ErrGateway.Code, appErrors.ErrGateway.Status,
			"submission gateway rejected the booking",
		)
	}
	return nil
}
