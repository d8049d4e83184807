package wallet

import (
	"context"
	"fmt"

	"evcarbon-marketplace/pkg/config"
	"evcarbon-marketplace/pkg/correlation"
	"evcarbon-marketplace/pkg/errutil"

	"github.com/go-resty/resty/v2"
)

// ReasonWalletRejected marks a downstream wallet failure. The caller's own
// state is durable by the time the wallet is called, so the error is safe to
// retry with the same idempotency key.
const ReasonWalletRejected = "WALLET_REJECTED"

const idempotencyKeyHeader = "X-Idempotency-Key"

// Client grants credits to an owner's wallet. The wallet service deduplicates
// on (owner_id, idempotency_key), so repeated calls with the same key are
// harmless.
type Client interface {
	Credit(ctx context.Context, ownerID string, amount float64, correlationID, idempotencyKey string) error
}

type httpClient struct {
	rest *resty.Client
}

type creditRequest struct {
	Amount         float64 `json:"amount"`
	IdempotencyKey string  `json:"idempotency_key"`
	CorrelationID  string  `json:"correlation_id,omitempty"`
}

// NewHTTPClient builds the wallet client from config. Every call carries the
// configured bounded timeout.
func NewHTTPClient(cfg *config.Config) Client {
	rest := resty.New().
		SetBaseURL(cfg.Wallet.BaseURL).
		SetTimeout(cfg.Wallet.Timeout)

	return &httpClient{rest: rest}
}

func (c *httpClient) Credit(ctx context.Context, ownerID string, amount float64, correlationID, idempotencyKey string) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader(correlation.Header, correlationID).
		SetHeader(idempotencyKeyHeader, idempotencyKey).
		SetBody(creditRequest{
			Amount:         amount,
			IdempotencyKey: idempotencyKey,
			CorrelationID:  correlationID,
		}).
		Post(fmt.Sprintf("/v1/wallets/%s/credits", ownerID))
	if err != nil {
		return errutil.BadGateway("wallet service unreachable", err,
			errutil.WithReason(ReasonWalletRejected))
	}

	if resp.IsError() {
		return errutil.BadGateway(
			fmt.Sprintf("wallet service rejected credit: status %d", resp.StatusCode()), nil,
			errutil.WithReason(ReasonWalletRejected))
	}

	return nil
}
