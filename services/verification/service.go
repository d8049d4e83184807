package verification

import (
	"context"
	"errors"
	"strings"
	"time"

	"evcarbon-marketplace/pkg/correlation"
	"evcarbon-marketplace/pkg/db/option"
	"evcarbon-marketplace/pkg/db/pagination"
	"evcarbon-marketplace/pkg/errutil"
	"evcarbon-marketplace/pkg/repository"
	"evcarbon-marketplace/services/audit"
	"evcarbon-marketplace/services/issuance"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreditIssuer is the slice of the issuance service the verification
// workflow depends on.
type CreditIssuer interface {
	IssueCredits(ctx context.Context, in issuance.IssueInput, idempotencyKey, correlationID string) (*issuance.CreditIssuance, error)
	GetByRequestID(ctx context.Context, requestID string) (*issuance.CreditIssuance, error)
}

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	requests  repository.Repository[VerificationRequest]
	validator *ValidationEngine
	issuer    CreditIssuer
	auditor   audit.Recorder
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Requests  repository.Repository[VerificationRequest]
	Validator *ValidationEngine
	Issuer    CreditIssuer
	Auditor   audit.Recorder
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		requests:  p.Requests,
		validator: p.Validator,
		issuer:    p.Issuer,
		auditor:   p.Auditor,
	}
}

// ApproveInput carries a verifier's approval decision.
type ApproveInput struct {
	RequestID      string
	VerifierID     string
	Notes          *string
	IdempotencyKey string
	CorrelationID  string
}

// RejectInput carries a verifier's rejection decision.
type RejectInput struct {
	RequestID  string
	VerifierID string
	Reason     string
}

// Create validates and persists a new PENDING verification request.
// The validation pre-check is an optimization; the store's unique
// constraints remain the arbiter when two submissions race.
func (s *Service) Create(ctx context.Context, in NewRequestInput) (*VerificationRequest, error) {
	ctx, correlationID := correlation.Ensure(ctx, "")
	opts := s.logFields(ctx, correlationID)

	if err := s.validator.ValidateNewRequest(ctx, in); err != nil {
		return nil, err
	}

	request := &VerificationRequest{
		ID:         s.node.Generate().String(),
		OwnerID:    in.OwnerID,
		TripID:     in.TripID,
		DistanceKm: in.DistanceKm,
		EnergyKwh:  in.EnergyKwh,
		Checksum:   in.Checksum,
		Status:     StatusPending,
		Notes:      in.Notes,
		Metadata:   in.Metadata,
	}

	if err := s.requests.Create(ctx, request); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a uniqueness race that the pre-check could not see.
			return nil, s.classifyDuplicate(ctx, in)
		}
		zap.L().With(opts...).Error("failed to persist verification request", zap.Error(err))
		return nil, errutil.Internal("failed to persist verification request", err)
	}

	zap.L().With(opts...).Info("verification request created",
		zap.String("request_id", request.ID),
		zap.String("owner_id", request.OwnerID))

	s.auditor.Record(ctx, audit.ActionRequestCreated, map[string]any{
		"request_id": request.ID,
		"owner_id":   request.OwnerID,
		"trip_id":    request.TripID,
		"checksum":   request.Checksum,
	})

	return request, nil
}

// classifyDuplicate decides which uniqueness rule a losing insert violated so
// the caller sees the same error a pre-check hit would produce.
func (s *Service) classifyDuplicate(ctx context.Context, in NewRequestInput) error {
	existing, err := s.requests.FindOne(ctx, &VerificationRequest{Checksum: in.Checksum})
	if err == nil && existing != nil {
		return errDuplicateChecksum(in.Checksum)
	}
	return errDuplicateTrip(in.OwnerID, in.TripID)
}

// Approve moves a PENDING request to APPROVED and delegates credit issuance.
// An APPROVED request with no issuance on record is treated as a crashed
// earlier attempt: the same call with the same idempotency key completes it.
func (s *Service) Approve(ctx context.Context, in ApproveInput) (*VerificationRequest, error) {
	ctx, correlationID := correlation.Ensure(ctx, in.CorrelationID)
	opts := append(s.logFields(ctx, correlationID), zap.String("request_id", in.RequestID))

	if strings.TrimSpace(in.IdempotencyKey) == "" {
		return nil, errutil.BadRequest("idempotency key is required", nil,
			errutil.WithReason(issuance.ReasonMissingIdempotencyKey))
	}

	request, err := s.getForDecision(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}

	switch {
	case request.Status == StatusPending:
		if err := s.persistDecision(ctx, request, StatusApproved, in.VerifierID, in.Notes); err != nil {
			return nil, err
		}
	case request.Status == StatusApproved:
		// Crash window: APPROVED persisted, issuance missing. Allow the
		// retry through so the idempotency key can finish the job.
		existing, err := s.issuer.GetByRequestID(ctx, request.ID)
		if err != nil {
			return nil, errutil.Internal("failed to check issuance state", err)
		}
		if existing != nil {
			return nil, errInvalidTransition(request.Status)
		}
		zap.L().With(opts...).Warn("approved request without issuance, completing issuance")
	default:
		return nil, errInvalidTransition(request.Status)
	}

	if _, err := s.issuer.IssueCredits(ctx, issuance.IssueInput{
		RequestID:  request.ID,
		OwnerID:    request.OwnerID,
		DistanceKm: request.DistanceKm,
		EnergyKwh:  request.EnergyKwh,
	}, in.IdempotencyKey, correlationID); err != nil {
		return nil, err
	}

	request, err = s.requests.FindOne(ctx, &VerificationRequest{ID: in.RequestID})
	if err != nil || request == nil {
		return nil, errutil.Internal("failed to reload approved request", err)
	}

	zap.L().With(opts...).Info("verification request approved",
		zap.String("verifier_id", in.VerifierID))

	s.auditor.Record(ctx, audit.ActionRequestApproved, map[string]any{
		"request_id":  request.ID,
		"owner_id":    request.OwnerID,
		"verifier_id": in.VerifierID,
	})

	return request, nil
}

// Reject moves a PENDING request to REJECTED. No issuance happens.
func (s *Service) Reject(ctx context.Context, in RejectInput) (*VerificationRequest, error) {
	ctx, correlationID := correlation.Ensure(ctx, "")
	opts := append(s.logFields(ctx, correlationID), zap.String("request_id", in.RequestID))

	request, err := s.getForDecision(ctx, in.RequestID)
	if err != nil {
		return nil, err
	}

	if request.Status != StatusPending {
		return nil, errInvalidTransition(request.Status)
	}

	reason := in.Reason
	if err := s.persistDecision(ctx, request, StatusRejected, in.VerifierID, &reason); err != nil {
		return nil, err
	}

	request, err = s.requests.FindOne(ctx, &VerificationRequest{ID: in.RequestID})
	if err != nil || request == nil {
		return nil, errutil.Internal("failed to reload rejected request", err)
	}

	zap.L().With(opts...).Info("verification request rejected",
		zap.String("verifier_id", in.VerifierID))

	s.auditor.Record(ctx, audit.ActionRequestRejected, map[string]any{
		"request_id":  request.ID,
		"owner_id":    request.OwnerID,
		"verifier_id": in.VerifierID,
		"reason":      in.Reason,
	})

	return request, nil
}

func (s *Service) getForDecision(ctx context.Context, requestID string) (*VerificationRequest, error) {
	request, err := s.requests.FindOne(ctx, &VerificationRequest{ID: requestID})
	if err != nil {
		return nil, errutil.Internal("failed to load verification request", err)
	}
	if request == nil {
		return nil, errutil.NotFound("verification request not found", nil,
			errutil.WithReason(ReasonNotFound))
	}
	return request, nil
}

// persistDecision writes the terminal state with a guard on the current
// status. RowsAffected zero means a concurrent decision won; the loser sees
// InvalidTransition, never a silent overwrite.
func (s *Service) persistDecision(ctx context.Context, request *VerificationRequest, target Status, verifierID string, notes *string) error {
	if !request.Status.CanTransition(target) {
		return errInvalidTransition(request.Status)
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":      target,
		"verifier_id": verifierID,
		"verified_at": now,
		"updated_at":  now,
	}
	if notes != nil {
		updates["notes"] = *notes
	}

	res := s.db.WithContext(ctx).
		Model(&VerificationRequest{}).
		Where("id = ? AND status = ?", request.ID, StatusPending).
		Updates(updates)
	if res.Error != nil {
		return errutil.Internal("failed to persist decision", res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.requests.FindOne(ctx, &VerificationRequest{ID: request.ID})
		if err == nil && current != nil {
			return errInvalidTransition(current.Status)
		}
		return errInvalidTransition(request.Status)
	}

	return nil
}

// Get returns a request by id.
func (s *Service) Get(ctx context.Context, id string) (*VerificationRequest, error) {
	return s.getForDecision(ctx, id)
}

// List returns requests matching the filter, newest first, with cursor
// pagination.
func (s *Service) List(ctx context.Context, f Filter, page pagination.Pagination) ([]*VerificationRequest, *pagination.PageInfo, error) {
	opts := BuildQueryOptions(f)

	if page.Cursor != "" {
		cursor, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, nil, errutil.BadRequest("malformed cursor", err)
		}
		if cursor.CreatedAt != "" {
			createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
			if err != nil {
				return nil, nil, errutil.BadRequest("malformed cursor", err)
			}
			opts = append(opts, option.ApplyOperator(option.Condition{
				Field: "created_at", Operator: option.LT, Value: createdAt,
			}))
		}
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 20
	}
	opts = append(opts,
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc", Allow: map[string]bool{"created_at": true}}),
		option.WithLimit(limit+1),
	)

	requests, err := s.requests.Find(ctx, &VerificationRequest{}, opts...)
	if err != nil {
		return nil, nil, errutil.Internal("failed to list verification requests", err)
	}

	requests, pageInfo := pagination.BuildCursorPageInfo(requests, limit, func(r *VerificationRequest) string {
		cursor, _ := pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339Nano),
			ID:        r.ID,
		})
		return cursor
	})

	return requests, pageInfo, nil
}

func (s *Service) logFields(ctx context.Context, correlationID string) []zap.Field {
	span := trace.SpanFromContext(ctx)
	return []zap.Field{
		zap.String("correlation_id", correlationID),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	}
}

func errInvalidTransition(current Status) error {
	return errutil.UnprocessableEntity(
		"verification request is "+string(current)+" and cannot be decided again", nil,
		errutil.WithReason(ReasonInvalidTransition))
}
