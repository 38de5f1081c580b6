package ledger

import (
	"context" // Request scoped lookups
	"errors"  // Error inspection
	"fmt"     // Detail formatting

	"fund_ledger/internal/domain"     // Fund model and error kinds
	"fund_ledger/internal/repository" // Fund store
)

// AccessGuard scopes funds to their owning user.
type AccessGuard struct {
	repo repository.Repository // Store the guard reads funds from
}

// NewAccessGuard returns a guard reading funds from repo.
func NewAccessGuard(repo repository.Repository) *AccessGuard {
	return &AccessGuard{repo: repo}
}

// within returns a guard reading through tx, so the check and the write share a transaction
func (g *AccessGuard) within(tx repository.Repository) *AccessGuard {
	return &AccessGuard{repo: tx}
}

// Authorize loads fundID and returns it when userID owns it. A missing fund
// and a fund owned by someone else both fail with KindForbidden; a missing
// fund also wraps domain.ErrRecordNotFound for callers that must tell them apart.
func (g *AccessGuard) Authorize(ctx context.Context, fundID, userID uint) (*domain.Fund, error) {
	fund, err := g.repo.FindFund(ctx, fundID)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, &domain.Error{
			Kind:   domain.KindForbidden,
			Detail: fmt.Sprintf("fund %d is not accessible", fundID),
			Err:    domain.ErrRecordNotFound, // Never rendered over HTTP
		}
	}
	if err != nil {
		return nil, domain.Persistence("load fund", err)
	}
	if fund.UserID != userID {
		return nil, domain.Errorf(domain.KindForbidden, "fund %d is not accessible", fundID) // Same detail as a missing fund
	}
	return fund, nil
}
