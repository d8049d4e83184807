package issuance

import (
	"context"
	"errors"
	"strings"
	"time"

	"evcarbon-marketplace/pkg/correlation"
	"evcarbon-marketplace/pkg/db/option"
	"evcarbon-marketplace/pkg/errutil"
	"evcarbon-marketplace/pkg/repository"
	"evcarbon-marketplace/services/audit"
	"evcarbon-marketplace/services/wallet"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// IssueInput is the slice of an approved verification request the issuance
// workflow needs. Issuance references the request by id only and never
// mutates it.
type IssueInput struct {
	RequestID  string
	OwnerID    string
	DistanceKm float64
	EnergyKwh  float64
}

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	calc      *Calculator
	issuances repository.Repository[CreditIssuance]
	wallet    wallet.Client
	auditor   audit.Recorder
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Node       *snowflake.Node
	Calculator *Calculator
	Issuances  repository.Repository[CreditIssuance]
	Wallet     wallet.Client
	Auditor    audit.Recorder
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		calc:      p.Calculator,
		wallet:    p.Wallet,
		issuances: p.Issuances,
		auditor:   p.Auditor,
	}
}

// IssueCredits grants credits for an approved request exactly once per
// idempotency key. The issuance row is persisted before the wallet call so a
// wallet failure leaves a durable record; a retry with the same key takes the
// replay path instead of crediting twice.
func (s *Service) IssueCredits(ctx context.Context, in IssueInput, idempotencyKey, correlationID string) (*CreditIssuance, error) {
	span := trace.SpanFromContext(ctx)
	opts := []zap.Field{
		zap.String("request_id", in.RequestID),
		zap.String("correlation_id", correlationID),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	}

	if strings.TrimSpace(idempotencyKey) == "" {
		return nil, errutil.BadRequest("idempotency key is required", nil,
			errutil.WithReason(ReasonMissingIdempotencyKey))
	}

	existing, err := s.issuances.FindOne(ctx, &CreditIssuance{IdempotencyKey: idempotencyKey})
	if err != nil {
		zap.L().With(opts...).Error("failed to look up issuance by idempotency key", zap.Error(err))
		return nil, errutil.Internal("failed to look up issuance", err)
	}
	if existing != nil {
		if existing.RequestID == in.RequestID {
			// Replay path: same logical operation retried. No recompute,
			// no second wallet call.
			zap.L().With(opts...).Info("issuance replayed from idempotency key",
				zap.String("issuance_id", existing.ID))
			return existing, nil
		}
		return nil, errutil.Conflict("idempotency key was already used for a different request", nil,
			errutil.WithReason(ReasonIdempotencyKeyReused))
	}

	calc, err := s.calc.Compute(in.DistanceKm, in.EnergyKwh)
	if err != nil {
		return nil, err
	}

	issuance := &CreditIssuance{
		ID:             s.node.Generate().String(),
		RequestID:      in.RequestID,
		OwnerID:        in.OwnerID,
		CO2ReducedKg:   calc.CO2ReducedKg,
		CreditsRaw:     calc.CreditsRaw,
		CreditsRounded: calc.CreditsRounded,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}
	if correlationID != "" {
		issuance.CorrelationID = &correlationID
	}

	if err := s.issuances.Create(ctx, issuance); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent caller won the insert race. Re-read and converge.
			return s.resolveInsertConflict(ctx, in, idempotencyKey)
		}
		zap.L().With(opts...).Error("failed to persist issuance", zap.Error(err))
		return nil, errutil.Internal("failed to persist issuance", err)
	}

	if err := s.wallet.Credit(ctx, issuance.OwnerID, issuance.CreditsRounded, correlationID, idempotencyKey); err != nil {
		// Issuance row is already durable. The wallet dedupes on
		// (owner, idempotency_key), so the edge can retry safely.
		zap.L().With(opts...).Error("wallet credit failed after issuance persisted", zap.Error(err))
		return nil, err
	}

	zap.L().With(opts...).Info("credits issued",
		zap.String("issuance_id", issuance.ID),
		zap.Float64("credits", issuance.CreditsRounded))

	s.auditor.Record(correlation.WithID(ctx, correlationID), audit.ActionCreditsIssued, map[string]any{
		"issuance_id": issuance.ID,
		"request_id":  issuance.RequestID,
		"owner_id":    issuance.OwnerID,
		"credits":     issuance.CreditsRounded,
	})

	return issuance, nil
}

// resolveInsertConflict handles the losing side of a concurrent insert race:
// re-read by key, fall back to the request id for the case where the same
// request was issued under a different key.
func (s *Service) resolveInsertConflict(ctx context.Context, in IssueInput, idempotencyKey string) (*CreditIssuance, error) {
	existing, err := s.issuances.FindOne(ctx, &CreditIssuance{IdempotencyKey: idempotencyKey})
	if err != nil {
		return nil, errutil.Internal("failed to re-read issuance after conflict", err)
	}
	if existing != nil {
		if existing.RequestID == in.RequestID {
			return existing, nil
		}
		return nil, errutil.Conflict("idempotency key was already used for a different request", nil,
			errutil.WithReason(ReasonIdempotencyKeyReused))
	}

	existing, err = s.issuances.FindOne(ctx, &CreditIssuance{RequestID: in.RequestID})
	if err != nil {
		return nil, errutil.Internal("failed to re-read issuance after conflict", err)
	}
	if existing != nil {
		return nil, errutil.Conflict("credits were already issued for this request under a different key", nil,
			errutil.WithReason(ReasonIssuanceAlreadyExists))
	}

	return nil, errutil.Internal("issuance insert conflicted but no issuance found", nil)
}

// GetByRequestID returns the issuance referencing the request, or nil when
// none exists. Absence is not an error.
func (s *Service) GetByRequestID(ctx context.Context, requestID string) (*CreditIssuance, error) {
	return s.issuances.FindOne(ctx, &CreditIssuance{RequestID: requestID})
}

// GetByIdempotencyKey returns the issuance bound to the key, or nil when
// none exists.
func (s *Service) GetByIdempotencyKey(ctx context.Context, key string) (*CreditIssuance, error) {
	return s.issuances.FindOne(ctx, &CreditIssuance{IdempotencyKey: key})
}

// List returns issuances matching the filter, newest first.
func (s *Service) List(ctx context.Context, f Filter, limit int, cursorCreatedAt *time.Time) ([]*CreditIssuance, error) {
	opts := BuildQueryOptions(f)
	if cursorCreatedAt != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field: "created_at", Operator: option.LT, Value: *cursorCreatedAt,
		}))
	}
	opts = append(opts,
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc", Allow: map[string]bool{"created_at": true}}),
		option.WithLimit(limit),
	)

	return s.issuances.Find(ctx, &CreditIssuance{}, opts...)
}
