// Package ledger enforces the fund rules: ownership of every fund by a
// single user, per-user allocation percentages summing to at most 100, and
// balance changes that are always written together with their history record.
package ledger

import (
	"context" // Request scoped calls
	"errors"  // Error inspection
	"time"    // Event timestamps

	"fund_ledger/internal/domain"     // Fund models and error kinds
	"fund_ledger/internal/repository" // Fund and history store

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// AllFunds selects every fund owned by the caller, as a deposit target or history scope.
const AllFunds = "all"

// Event types published after a ledger mutation commits.
const (
	EventDepositCreated    = "deposit.created"
	EventWithdrawalCreated = "withdrawal.created"
	EventFundCreated       = "fund.created"
	EventFundDeleted       = "fund.deleted"
)

// Event describes a committed ledger mutation.
type Event struct {
	Type       string    `json:"type"`
	UserID     uint      `json:"user_id"`
	FundID     uint      `json:"fund_id"`
	RecordID   uint      `json:"record_id,omitempty"`
	Amount     float64   `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier receives events for committed mutations.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Event) error { return nil }

// Service exposes fund CRUD, deposits, withdrawals and history queries.
// Every operation takes the caller's user id explicitly.
type Service struct {
	repo       repository.Repository // Fund and history store
	guard      *AccessGuard          // Ownership checks
	allocation *AllocationValidator  // Percentage sum checks
	notifier   Notifier              // Post-commit event sink
	log        *logrus.Logger        // Structured logger
	now        func() time.Time      // Clock, replaced in tests
}

// NewService builds a Service on repo. A nil notifier disables events.
func NewService(repo repository.Repository, notifier Notifier, log *logrus.Logger) *Service {
	if notifier == nil {
		notifier = noopNotifier{} // Events disabled
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		repo:       repo,
		guard:      NewAccessGuard(repo),
		allocation: NewAllocationValidator(repo),
		notifier:   notifier,
		log:        log,
		now:        time.Now,
	}
}

// notify publishes an event. Failures are logged and never reach the caller,
// the mutation is already committed.
func (s *Service) notify(ctx context.Context, event Event) {
	event.OccurredAt = s.now()
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.log.WithFields(logrus.Fields{
			"type":    event.Type,
			"user_id": event.UserID,
			"fund_id": event.FundID,
			"error":   err.Error(),
		}).Warn("Ledger event not published")
	}
}

// storeError classifies an error coming back from the repository.
func storeError(op string, err error) error {
	var ledgerErr *domain.Error
	if errors.As(err, &ledgerErr) {
		return err // Already classified
	}
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.Errorf(domain.KindNotFound, "%s: record not found", op)
	}
	return domain.Persistence(op, err)
}
