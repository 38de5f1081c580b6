package ledger

import (
	"context" // Request scoped calls
	"errors"  // Error inspection
	"strings" // Scope trimming

	"fund_ledger/internal/domain" // History models and error kinds
)

// resolveScope turns a history scope into a fund id, 0 meaning every fund of userID.
// A specific fund must be owned by userID.
func (s *Service) resolveScope(ctx context.Context, userID uint, scope string) (uint, error) {
	if strings.TrimSpace(scope) == AllFunds {
		return 0, nil // Every fund, including deleted ones
	}
	fundID, err := parseFundID(scope)
	if err != nil {
		return 0, err
	}
	if _, err := s.guard.Authorize(ctx, fundID, userID); err != nil {
		return 0, err
	}
	return fundID, nil
}

// ListDeposits returns userID's deposits for scope, oldest first.
func (s *Service) ListDeposits(ctx context.Context, userID uint, scope string) ([]domain.Deposit, error) {
	fundID, err := s.resolveScope(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	deposits, err := s.repo.ListDeposits(ctx, userID, fundID)
	if err != nil {
		return nil, storeError("list deposits", err)
	}
	return deposits, nil
}

// ListWithdrawals returns userID's withdrawals for scope, oldest first.
func (s *Service) ListWithdrawals(ctx context.Context, userID uint, scope string) ([]domain.Withdrawal, error) {
	fundID, err := s.resolveScope(ctx, userID, scope)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.repo.ListWithdrawals(ctx, userID, fundID)
	if err != nil {
		return nil, storeError("list withdrawals", err)
	}
	return withdrawals, nil
}

// GetDeposit returns a single deposit owned by userID.
func (s *Service) GetDeposit(ctx context.Context, userID, id uint) (*domain.Deposit, error) {
	deposit, err := s.repo.FindDeposit(ctx, id)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.Errorf(domain.KindNotFound, "deposit %d not found", id)
	}
	if err != nil {
		return nil, storeError("load deposit", err)
	}
	if deposit.UserID != userID {
		return nil, domain.Errorf(domain.KindForbidden, "deposit %d is not accessible", id)
	}
	return deposit, nil
}

// GetWithdrawal returns a single withdrawal owned by userID.
func (s *Service) GetWithdrawal(ctx context.Context, userID, id uint) (*domain.Withdrawal, error) {
	withdrawal, err := s.repo.FindWithdrawal(ctx, id)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.Errorf(domain.KindNotFound, "withdrawal %d not found", id)
	}
	if err != nil {
		return nil, storeError("load withdrawal", err)
	}
	if withdrawal.UserID != userID {
		return nil, domain.Errorf(domain.KindForbidden, "withdrawal %d is not accessible", id)
	}
	return withdrawal, nil
}
