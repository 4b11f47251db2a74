package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/flipwise/flipwise/internal/model"
	"github.com/flipwise/flipwise/internal/repository"
	"github.com/flipwise/flipwise/internal/service/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	parseFn func(payload []byte, headers http.Header) (*model.PaymentEvent, error)
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) CreateLink(ctx context.Context, req payment.LinkRequest) (*payment.Link, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeGateway) ParseWebhook(payload []byte, headers http.Header) (*model.PaymentEvent, error) {
	return f.parseFn(payload, headers)
}

type fakeArchive struct {
	mu      sync.Mutex
	keys    []string
	err     error
	release chan struct{}
}

func (a *fakeArchive) Put(ctx context.Context, key string, body []byte) error {
	if a.release != nil {
		select {
		case <-a.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return a.err
}

func (a *fakeArchive) stored() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.keys...)
}

type entitlementFixture struct {
	svc      *EntitlementService
	users    repository.UserRepository
	payments repository.PaymentRepository
	archive  *fakeArchive
	userID   string
}

func newEntitlementFixture(t *testing.T, gateway payment.Gateway) *entitlementFixture {
	t.Helper()

	conn := newTestDB(t)
	users := repository.NewUserRepository(conn)
	payments := repository.NewPaymentRepository(conn)
	archive := &fakeArchive{}

	auth := NewAuthService(users, newTestEmailService())
	userID, err := auth.Register(context.Background(), "Ann", "a@x.com", "pw")
	require.NoError(t, err)

	svc := NewEntitlementService(gateway, payments, users, newTestEmailService(), archive)
	t.Cleanup(func() { _ = svc.Wait(context.Background()) })

	return &entitlementFixture{
		svc:      svc,
		users:    users,
		payments: payments,
		archive:  archive,
		userID:   userID,
	}
}

func (f *entitlementFixture) isPremium(t *testing.T) bool {
	t.Helper()
	u, err := f.users.ByID(context.Background(), f.userID)
	require.NoError(t, err)
	return u.IsPremium
}

func paidEvent(userID, invoiceID string) *model.PaymentEvent {
	return &model.PaymentEvent{
		Provider:  "fake",
		EventID:   "evt-" + invoiceID,
		InvoiceID: invoiceID,
		Status:    model.PaymentStatusPaid,
		RawStatus: "paid",
		UserID:    userID,
		Payload:   []byte(`{}`),
	}
}

func TestApplyGrantsPremium(t *testing.T) {
	f := newEntitlementFixture(t, &fakeGateway{})
	ctx := context.Background()

	res := f.svc.Apply(ctx, paidEvent(f.userID, "INV1"))
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "INV1", res.InvoiceID)
	assert.True(t, f.isPremium(t))
	require.NoError(t, f.svc.Wait(ctx))
	keys := f.archive.stored()
	require.Len(t, keys, 1)
	assert.Contains(t, keys[0], "webhooks/fake/")
}

func TestApplyIsIdempotent(t *testing.T) {
	f := newEntitlementFixture(t, &fakeGateway{})
	ctx := context.Background()

	first := f.svc.Apply(ctx, paidEvent(f.userID, "INV1"))
	second := f.svc.Apply(ctx, paidEvent(f.userID, "INV1"))

	assert.Equal(t, OutcomeApplied, first.Outcome)
	assert.Equal(t, OutcomeApplied, second.Outcome)
	assert.True(t, second.Duplicate)
	assert.True(t, f.isPremium(t))

	// Side effects run once per invoice.
	require.NoError(t, f.svc.Wait(ctx))
	assert.Len(t, f.archive.stored(), 1)
}

func TestApplyConcurrentRedelivery(t *testing.T) {
	f := newEntitlementFixture(t, &fakeGateway{})
	ctx := context.Background()

	const n = 5
	results := make([]Result, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.svc.Apply(ctx, paidEvent(f.userID, "INV1"))
		}()
	}
	wg.Wait()

	firsts := 0
	for _, r := range results {
		require.Equal(t, OutcomeApplied, r.Outcome)
		if !r.Duplicate {
			firsts++
		}
	}
	assert.Equal(t, 1, firsts)
	assert.True(t, f.isPremium(t))
}

func TestApplyRejectsWithoutMutation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(ev *model.PaymentEvent)
		reason string
	}{
		{
			name:   "pending",
			mutate: func(ev *model.PaymentEvent) { ev.Status = model.PaymentStatusPending },
			reason: "payment not completed",
		},
		{
			name:   "failed",
			mutate: func(ev *model.PaymentEvent) { ev.Status = model.PaymentStatusFailed },
			reason: "payment not completed",
		},
		{
			name:   "missing user id",
			mutate: func(ev *model.PaymentEvent) { ev.UserID = "" },
			reason: "missing user id",
		},
		{
			name:   "unknown user",
			mutate: func(ev *model.PaymentEvent) { ev.UserID = "ghost" },
			reason: "unknown user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEntitlementFixture(t, &fakeGateway{})

			ev := paidEvent(f.userID, "INV1")
			tt.mutate(ev)

			res := f.svc.Apply(context.Background(), ev)
			assert.Equal(t, OutcomeRejected, res.Outcome)
			assert.Equal(t, tt.reason, res.Reason)
			assert.False(t, f.isPremium(t))
			require.NoError(t, f.svc.Wait(context.Background()))
			assert.Empty(t, f.archive.stored())

			_, err := f.payments.ByInvoice(context.Background(), "fake", "INV1")
			assert.Error(t, err)
		})
	}
}

func TestApplyWithoutInvoiceID(t *testing.T) {
	f := newEntitlementFixture(t, &fakeGateway{})

	ev := paidEvent(f.userID, "")
	ev.EventID = ""

	res := f.svc.Apply(context.Background(), ev)
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.NotEmpty(t, res.InvoiceID)
	assert.True(t, f.isPremium(t))
}

func TestApplyArchiveFailureKeepsOutcome(t *testing.T) {
	f := newEntitlementFixture(t, &fakeGateway{})
	f.archive.err = errors.New("bucket unavailable")

	res := f.svc.Apply(context.Background(), paidEvent(f.userID, "INV1"))
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.True(t, f.isPremium(t))
	require.NoError(t, f.svc.Wait(context.Background()))
}

func TestApplyDoesNotWaitForSideEffects(t *testing.T) {
	f := newEntitlementFixture(t, &fakeGateway{})
	f.archive.release = make(chan struct{})

	done := make(chan Result, 1)
	go func() {
		done <- f.svc.Apply(context.Background(), paidEvent(f.userID, "INV1"))
	}()

	select {
	case res := <-done:
		assert.Equal(t, OutcomeApplied, res.Outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("Apply blocked on the archive")
	}
	assert.True(t, f.isPremium(t))
	assert.Empty(t, f.archive.stored())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, f.svc.Wait(ctx), context.DeadlineExceeded)

	close(f.archive.release)
	require.NoError(t, f.svc.Wait(context.Background()))
	assert.Len(t, f.archive.stored(), 1)
}

func TestSideEffectsOutliveRequestContext(t *testing.T) {
	f := newEntitlementFixture(t, &fakeGateway{})

	ctx, cancel := context.WithCancel(context.Background())
	res := f.svc.Apply(ctx, paidEvent(f.userID, "INV1"))
	cancel()

	assert.Equal(t, OutcomeApplied, res.Outcome)
	require.NoError(t, f.svc.Wait(context.Background()))
	assert.Len(t, f.archive.stored(), 1)
}

func TestProcessRejectsUnverifiedPayload(t *testing.T) {
	gateway := &fakeGateway{
		parseFn: func([]byte, http.Header) (*model.PaymentEvent, error) {
			return nil, payment.ErrWebhookVerification
		},
	}
	f := newEntitlementFixture(t, gateway)

	res := f.svc.Process(context.Background(), []byte(`{}`), http.Header{})
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.False(t, f.isPremium(t))
}

func TestProcessAppliesParsedEvent(t *testing.T) {
	var userID string
	gateway := &fakeGateway{
		parseFn: func(payload []byte, headers http.Header) (*model.PaymentEvent, error) {
			return paidEvent(userID, "INV9"), nil
		},
	}
	f := newEntitlementFixture(t, gateway)
	userID = f.userID

	res := f.svc.Process(context.Background(), []byte(`{}`), http.Header{})
	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.True(t, f.isPremium(t))
}

func TestApplyPersistenceFailure(t *testing.T) {
	conn := newTestDB(t)
	users := repository.NewUserRepository(conn)
	svc := NewEntitlementService(&fakeGateway{}, repository.NewPaymentRepository(conn), users, nil, nil)
	require.NoError(t, conn.Close())

	res := svc.Apply(context.Background(), paidEvent("someone", "INV1"))
	assert.Equal(t, OutcomeFailed, res.Outcome)
}
