package audit

import (
	"context"

	"evcarbon-marketplace/pkg/config"
	"evcarbon-marketplace/pkg/correlation"
	"evcarbon-marketplace/pkg/errutil"

	"github.com/go-resty/resty/v2"
)

// Client writes audit records to the audit service. Failures are surfaced to
// the caller (the worker), which retries; the business flow never sees them.
type Client interface {
	Record(ctx context.Context, action string, payload map[string]any) error
}

type httpClient struct {
	rest *resty.Client
}

type recordRequest struct {
	Action        string         `json:"action"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Payload       map[string]any `json:"payload"`
}

func NewHTTPClient(cfg *config.Config) Client {
	rest := resty.New().
		SetBaseURL(cfg.Audit.BaseURL).
		SetTimeout(cfg.Audit.Timeout)

	return &httpClient{rest: rest}
}

func (c *httpClient) Record(ctx context.Context, action string, payload map[string]any) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader(correlation.Header, correlation.FromContext(ctx)).
		SetBody(recordRequest{
			Action:        action,
			CorrelationID: correlation.FromContext(ctx),
			Payload:       payload,
		}).
		Post("/v1/audit-logs")
	if err != nil {
		return errutil.BadGateway("audit service unreachable", err)
	}

	if resp.IsError() {
		return errutil.BadGateway("audit service rejected record", nil)
	}

	return nil
}
