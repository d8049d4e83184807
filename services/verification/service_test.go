package verification

import (
	"context"
	"fmt"
	"testing"

	"evcarbon-marketplace/pkg/db/pagination"
	"evcarbon-marketplace/pkg/errutil"
	"evcarbon-marketplace/pkg/repository"
	"evcarbon-marketplace/services/audit"
	"evcarbon-marketplace/services/issuance"
	"evcarbon-marketplace/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fakeWallet struct {
	calls int
	err   error
}

func (f *fakeWallet) Credit(ctx context.Context, ownerID string, amount float64, correlationID, idempotencyKey string) error {
	f.calls++
	return f.err
}

type fakeRecorder struct {
	actions []string
}

func (f *fakeRecorder) Record(ctx context.Context, action string, payload map[string]any) {
	f.actions = append(f.actions, action)
}

type testEnv struct {
	svc      *Service
	issuer   *issuance.Service
	wallet   *fakeWallet
	recorder *fakeRecorder
	db       *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t, &VerificationRequest{}, &issuance.CreditIssuance{})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	w := &fakeWallet{}
	recorder := &fakeRecorder{}
	issuer := issuance.NewService(issuance.ServiceParams{
		DB:         db,
		Node:       node,
		Calculator: issuance.NewCalculatorWithFactors(issuance.Factors{BaselineKgPerKm: 0.192, GridKgPerKwh: 0.475, CreditsPerKg: 1.0}),
		Issuances:  repository.ProvideStore[issuance.CreditIssuance](db),
		Wallet:     w,
		Auditor:    recorder,
	})

	requests := repository.ProvideStore[VerificationRequest](db)
	svc := NewService(ServiceParams{
		DB:        db,
		Node:      node,
		Requests:  requests,
		Validator: NewValidationEngine(requests, testConfig()),
		Issuer:    issuer,
		Auditor:   recorder,
	})

	return &testEnv{svc: svc, issuer: issuer, wallet: w, recorder: recorder, db: db}
}

func (e *testEnv) createPending(t *testing.T) *VerificationRequest {
	t.Helper()
	request, err := e.svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	return request
}

func TestCreatePersistsPendingRequest(t *testing.T) {
	env := newTestEnv(t)

	in := validInput()
	in.Metadata = datatypes.JSON([]byte(`{"vehicle":"compact-ev"}`))

	request, err := env.svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, request.ID)
	require.Equal(t, StatusPending, request.Status)
	require.Nil(t, request.VerifierID)
	require.Nil(t, request.VerifiedAt)
	require.JSONEq(t, `{"vehicle":"compact-ev"}`, string(request.Metadata))
	require.Contains(t, env.recorder.actions, audit.ActionRequestCreated)
}

func TestCreateRejectsDuplicateSubmission(t *testing.T) {
	env := newTestEnv(t)
	env.createPending(t)

	_, err := env.svc.Create(context.Background(), validInput())
	require.Error(t, err)
	require.Equal(t, ReasonDuplicateChecksum, errutil.ReasonOf(err))
}

func TestApproveIssuesCredits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := env.createPending(t)

	approved, err := env.svc.Approve(ctx, ApproveInput{
		RequestID:      request.ID,
		VerifierID:     "verifier-1",
		IdempotencyKey: "key-1",
		CorrelationID:  "corr-1",
	})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.VerifierID)
	require.Equal(t, "verifier-1", *approved.VerifierID)
	require.NotNil(t, approved.VerifiedAt)

	issued, err := env.svc.issuer.GetByRequestID(ctx, request.ID)
	require.NoError(t, err)
	require.NotNil(t, issued)
	require.Equal(t, 11.64, issued.CreditsRounded)
	require.Equal(t, "key-1", issued.IdempotencyKey)

	require.Equal(t, 1, env.wallet.calls)
	require.Contains(t, env.recorder.actions, audit.ActionCreditsIssued)
	require.Contains(t, env.recorder.actions, audit.ActionRequestApproved)
}

func TestApproveRoundTripsThroughIdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := env.createPending(t)

	_, err := env.svc.Approve(ctx, ApproveInput{
		RequestID: request.ID, VerifierID: "verifier-1", IdempotencyKey: "key-1",
	})
	require.NoError(t, err)

	byKey, err := env.issuer.GetByIdempotencyKey(ctx, "key-1")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	require.Equal(t, request.ID, byKey.RequestID)

	byRequest, err := env.issuer.GetByRequestID(ctx, request.ID)
	require.NoError(t, err)
	require.NotNil(t, byRequest)
	require.Equal(t, byKey.ID, byRequest.ID)
}

func TestApproveRequiresIdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	request := env.createPending(t)

	_, err := env.svc.Approve(context.Background(), ApproveInput{
		RequestID:  request.ID,
		VerifierID: "verifier-1",
	})
	require.Error(t, err)
	require.Equal(t, issuance.ReasonMissingIdempotencyKey, errutil.ReasonOf(err))
	require.Equal(t, 0, env.wallet.calls)
}

func TestApproveUnknownRequest(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Approve(context.Background(), ApproveInput{
		RequestID:      "does-not-exist",
		VerifierID:     "verifier-1",
		IdempotencyKey: "key-1",
	})
	require.Error(t, err)
	require.Equal(t, ReasonNotFound, errutil.ReasonOf(err))
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestApproveRejectedRequestFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := env.createPending(t)

	_, err := env.svc.Reject(ctx, RejectInput{
		RequestID: request.ID, VerifierID: "verifier-1", Reason: "odometer mismatch",
	})
	require.NoError(t, err)

	_, err = env.svc.Approve(ctx, ApproveInput{
		RequestID: request.ID, VerifierID: "verifier-2", IdempotencyKey: "key-1",
	})
	require.Error(t, err)
	require.Equal(t, ReasonInvalidTransition, errutil.ReasonOf(err))
	require.Equal(t, 0, env.wallet.calls)
}

func TestApproveIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := env.createPending(t)

	_, err := env.svc.Approve(ctx, ApproveInput{
		RequestID: request.ID, VerifierID: "verifier-1", IdempotencyKey: "key-1",
	})
	require.NoError(t, err)

	// A completed approval cannot be decided again, with either key.
	for _, key := range []string{"key-1", "key-2"} {
		_, err = env.svc.Approve(ctx, ApproveInput{
			RequestID: request.ID, VerifierID: "verifier-1", IdempotencyKey: key,
		})
		require.Error(t, err)
		require.Equal(t, ReasonInvalidTransition, errutil.ReasonOf(err))
	}
	require.Equal(t, 1, env.wallet.calls)
}

func TestApproveCompletesInterruptedIssuance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := env.createPending(t)

	// Simulate a crash after the APPROVED write but before issuance.
	require.NoError(t, env.db.Model(&VerificationRequest{}).
		Where("id = ?", request.ID).
		Updates(map[string]any{"status": StatusApproved, "verifier_id": "verifier-1"}).Error)

	approved, err := env.svc.Approve(ctx, ApproveInput{
		RequestID: request.ID, VerifierID: "verifier-1", IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)

	issued, err := env.svc.issuer.GetByRequestID(ctx, request.ID)
	require.NoError(t, err)
	require.NotNil(t, issued)
	require.Equal(t, 1, env.wallet.calls)
}

func TestRejectPersistsDecision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := env.createPending(t)

	rejected, err := env.svc.Reject(ctx, RejectInput{
		RequestID: request.ID, VerifierID: "verifier-1", Reason: "odometer mismatch",
	})
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.NotNil(t, rejected.Notes)
	require.Equal(t, "odometer mismatch", *rejected.Notes)
	require.Contains(t, env.recorder.actions, audit.ActionRequestRejected)

	// No credits for a rejected request.
	issued, err := env.svc.issuer.GetByRequestID(ctx, request.ID)
	require.NoError(t, err)
	require.Nil(t, issued)
	require.Equal(t, 0, env.wallet.calls)
}

func TestRejectIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := env.createPending(t)

	_, err := env.svc.Reject(ctx, RejectInput{
		RequestID: request.ID, VerifierID: "verifier-1", Reason: "first",
	})
	require.NoError(t, err)

	_, err = env.svc.Reject(ctx, RejectInput{
		RequestID: request.ID, VerifierID: "verifier-1", Reason: "second",
	})
	require.Error(t, err)
	require.Equal(t, ReasonInvalidTransition, errutil.ReasonOf(err))
}

func TestPersistDecisionLosesRaceToConcurrentDecision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	request := env.createPending(t)

	// Stale snapshot still says PENDING while another verifier decides.
	stale := *request
	require.NoError(t, env.db.Model(&VerificationRequest{}).
		Where("id = ?", request.ID).
		Update("status", StatusRejected).Error)

	err := env.svc.persistDecision(ctx, &stale, StatusApproved, "verifier-2", nil)
	require.Error(t, err)
	require.Equal(t, ReasonInvalidTransition, errutil.ReasonOf(err))

	// The winner's decision is untouched.
	current, err := env.svc.Get(ctx, request.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, current.Status)
}

func TestListFiltersAndPaginates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		in := validInput()
		in.TripID = fmt.Sprintf("trip-%d", i)
		in.Checksum = fmt.Sprintf("sha256:%d", i)
		request, err := env.svc.Create(ctx, in)
		require.NoError(t, err)

		if i == 0 {
			_, err = env.svc.Reject(ctx, RejectInput{
				RequestID: request.ID, VerifierID: "verifier-1", Reason: "bad data",
			})
			require.NoError(t, err)
		}
	}

	pending, _, err := env.svc.List(ctx, Filter{Status: StatusPending}, pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, pending, 4)

	rejected, _, err := env.svc.List(ctx, Filter{Status: StatusRejected}, pagination.Pagination{Limit: 10})
	require.NoError(t, err)
	require.Len(t, rejected, 1)

	firstPage, pageInfo, err := env.svc.List(ctx, Filter{}, pagination.Pagination{Limit: 3})
	require.NoError(t, err)
	require.Len(t, firstPage, 3)
	require.True(t, pageInfo.HasMore)
	require.NotEmpty(t, pageInfo.NextCursor)
}
