package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/flipwise/flipwise/internal/model"
	"github.com/flipwise/flipwise/internal/repository"
	"github.com/flipwise/flipwise/internal/service/payment"
	"github.com/flipwise/flipwise/internal/storage"
	"github.com/google/uuid"
)

type Outcome string

const (
	OutcomeReceived Outcome = "received"
	OutcomeRejected Outcome = "rejected"
	OutcomeApplied  Outcome = "applied"
	OutcomeFailed   Outcome = "failed"
)

// Result describes what a webhook delivery did.
type Result struct {
	Outcome   Outcome
	Reason    string
	UserID    string
	InvoiceID string
	Duplicate bool
}

const (
	archiveTimeout    = 10 * time.Second
	sideEffectTimeout = 30 * time.Second
)

// EntitlementService grants premium access from verified payment
// notifications. Every delivery is safe to repeat.
type EntitlementService struct {
	gateway           payment.Gateway
	paymentRepository repository.PaymentRepository
	userRepository    repository.UserRepository
	emailService      *EmailService
	archive           storage.Archive
	now               func() time.Time

	background sync.WaitGroup
}

func NewEntitlementService(
	gateway payment.Gateway,
	paymentRepository repository.PaymentRepository,
	userRepository repository.UserRepository,
	emailService *EmailService,
	archive storage.Archive,
) *EntitlementService {
	if archive == nil {
		archive = storage.NopArchive{}
	}
	return &EntitlementService{
		gateway:           gateway,
		paymentRepository: paymentRepository,
		userRepository:    userRepository,
		emailService:      emailService,
		archive:           archive,
		now:               time.Now,
	}
}

// Process handles one raw webhook delivery.
func (s *EntitlementService) Process(ctx context.Context, payload []byte, headers http.Header) Result {
	ev, err := s.gateway.ParseWebhook(payload, headers)
	if err != nil {
		slog.Warn("webhook rejected", "provider", s.gateway.Name(), "outcome", OutcomeRejected, "reason", "unverified or malformed", "error", err)
		return Result{Outcome: OutcomeRejected, Reason: err.Error()}
	}

	return s.Apply(ctx, ev)
}

// Apply acts on a verified event. Only a paid event with a known user
// changes state.
func (s *EntitlementService) Apply(ctx context.Context, ev *model.PaymentEvent) Result {
	res := Result{Outcome: OutcomeReceived, UserID: ev.UserID, InvoiceID: ev.InvoiceID}
	log := slog.With("provider", ev.Provider, "event_id", ev.EventID, "invoice_id", ev.InvoiceID, "user_id", ev.UserID, "status", ev.RawStatus)

	if !ev.IsPaid() {
		res.Outcome = OutcomeRejected
		res.Reason = "payment not completed"
		log.Info("webhook ignored", "outcome", res.Outcome, "reason", res.Reason)
		return res
	}

	if ev.UserID == "" {
		res.Outcome = OutcomeRejected
		res.Reason = "missing user id"
		log.Warn("webhook rejected", "outcome", res.Outcome, "reason", res.Reason)
		return res
	}

	// The ledger needs a key; a delivery without one is recorded under a
	// fresh id and so never counts as a redelivery.
	invoiceID := ev.InvoiceID
	if invoiceID == "" {
		invoiceID = firstNonEmpty(ev.EventID, "unidentified-"+uuid.NewString())
	}

	duplicate, err := s.paymentRepository.ApplyPaid(ctx, &model.ProcessedPayment{
		ID:        uuid.NewString(),
		Provider:  ev.Provider,
		InvoiceID: invoiceID,
		UserID:    ev.UserID,
		Status:    ev.RawStatus,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			res.Outcome = OutcomeRejected
			res.Reason = "unknown user"
			log.Warn("webhook rejected", "outcome", res.Outcome, "reason", res.Reason)
			return res
		}
		res.Outcome = OutcomeFailed
		res.Reason = "persistence error"
		log.Error("webhook apply failed", "outcome", res.Outcome, "error", err)
		return res
	}

	res.Outcome = OutcomeApplied
	res.InvoiceID = invoiceID
	res.Duplicate = duplicate
	log.Info("premium granted", "outcome", res.Outcome, "duplicate", duplicate)

	if !duplicate {
		// The provider is acknowledged without waiting for these.
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
			defer cancel()
			s.afterFirstApply(bgCtx, ev, invoiceID)
		}()
	}

	return res
}

// Wait blocks until side effects started by Apply have finished or ctx is
// done.
func (s *EntitlementService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// afterFirstApply runs best-effort side effects. Their failures are logged
// and never change the outcome.
func (s *EntitlementService) afterFirstApply(ctx context.Context, ev *model.PaymentEvent, invoiceID string) {
	if len(ev.Payload) > 0 {
		archiveCtx, cancel := context.WithTimeout(ctx, archiveTimeout)
		key := storage.WebhookKey(ev.Provider, invoiceID, s.now())
		err := s.archive.Put(archiveCtx, key, ev.Payload)
		cancel()
		if err != nil {
			slog.Warn("failed to archive webhook", "key", key, "error", err)
		}
	}

	if s.emailService == nil {
		return
	}

	user, err := s.userRepository.ByID(ctx, ev.UserID)
	if err != nil {
		slog.Warn("failed to load user for premium email", "user_id", ev.UserID, "error", err)
		return
	}

	err = s.emailService.SendPremiumActivatedEmail(ctx, user.Email, user.Name)
	if err != nil {
		slog.Warn("failed to send premium email", "user_id", ev.UserID, "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
