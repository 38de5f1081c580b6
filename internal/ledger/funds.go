package ledger

import (
	"context" // Request scoped calls
	"errors"  // Error inspection
	"math"    // Balance checks
	"strconv" // Numeric size check
	"strings" // Input trimming

	"fund_ledger/internal/domain"     // Fund model and error kinds
	"fund_ledger/internal/repository" // Fund store

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// CreateFundRequest holds a new fund. Zero Size and Notes fall back to their defaults.
type CreateFundRequest struct {
	Name       string  // Unique across all users
	Percentage float64 // Share of "all" deposits
	Balance    float64 // Opening balance
	Size       string  // Label or positive number
	Notes      string  // Free text
}

// validateName trims name and rejects blanks.
func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.Errorf(domain.KindInvalidInput, "fund name is required")
	}
	return name, nil
}

// validateSize rejects empty sizes and numeric sizes that are not positive.
func validateSize(size string) (string, error) {
	size = strings.TrimSpace(size)
	if size == "" {
		return "", domain.Errorf(domain.KindInvalidInput, "size is required")
	}
	if n, err := strconv.ParseFloat(size, 64); err == nil && !(n > 0) {
		return "", domain.Errorf(domain.KindInvalidInput, "Invalid size value (%s)", size)
	}
	return size, nil
}

// ensureNameFree fails when another fund, of any user, already uses name.
func ensureNameFree(ctx context.Context, repo repository.Repository, name string, selfID uint) error {
	existing, err := repo.FindFundByName(ctx, name)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return domain.Persistence("check fund name", err)
	}
	if existing.ID != selfID {
		return domain.Errorf(domain.KindInvalidInput, "fund name %q is already taken", name)
	}
	return nil
}

// fundWriteError turns a unique constraint violation into an input error.
func fundWriteError(op, name string, err error) error {
	if errors.Is(err, domain.ErrDuplicateKey) {
		return domain.Errorf(domain.KindInvalidInput, "fund name %q is already taken", name)
	}
	return storeError(op, err)
}

// CreateFund validates and stores a new fund for userID.
func (s *Service) CreateFund(ctx context.Context, userID uint, req CreateFundRequest) (*domain.Fund, error) {
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	if req.Size == "" {
		req.Size = domain.DefaultFundSize // "Open"
	}
	size, err := validateSize(req.Size)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(req.Balance) || math.IsInf(req.Balance, 0) || req.Balance < 0 {
		return nil, domain.Errorf(domain.KindInvalidInput, "initial balance must be zero or positive")
	}
	fund := &domain.Fund{
		FundName:       name,
		FundPercentage: req.Percentage,
		Balance:        req.Balance,
		Size:           size,
		Notes:          req.Notes,
		UserID:         userID,
	}
	err = s.repo.Transaction(ctx, func(tx repository.Repository) error {
		if err := ensureNameFree(ctx, tx, name, 0); err != nil {
			return err
		}
		if err := s.allocation.within(tx).Validate(ctx, userID, req.Percentage, 0); err != nil {
			return err
		}
		if err := tx.CreateFund(ctx, fund); err != nil {
			return fundWriteError("create fund", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, storeError("create fund", err)
	}
	s.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"fund_id":    fund.ID,
		"percentage": fund.FundPercentage,
	}).Info("Fund created")
	s.notify(ctx, Event{Type: EventFundCreated, UserID: userID, FundID: fund.ID, Amount: fund.Balance})
	return fund, nil
}

// GetFund returns a fund owned by userID.
func (s *Service) GetFund(ctx context.Context, userID, fundID uint) (*domain.Fund, error) {
	return s.guard.Authorize(ctx, fundID, userID)
}

// ListFunds returns all funds owned by userID.
func (s *Service) ListFunds(ctx context.Context, userID uint) ([]domain.Fund, error) {
	funds, err := s.repo.FindFundsByUser(ctx, userID)
	if err != nil {
		return nil, storeError("list funds", err)
	}
	return funds, nil
}

// updateFund authorizes fundID, runs check inside the transaction, writes
// fields and returns the fund as stored afterwards.
func (s *Service) updateFund(ctx context.Context, userID, fundID uint, fields map[string]any,
	check func(tx repository.Repository) error) (*domain.Fund, error) {
	var updated *domain.Fund
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		if _, err := s.guard.within(tx).Authorize(ctx, fundID, userID); err != nil {
			return err
		}
		if check != nil {
			if err := check(tx); err != nil {
				return err
			}
		}
		if err := tx.UpdateFund(ctx, fundID, fields); err != nil {
			return err
		}
		fund, err := tx.FindFund(ctx, fundID)
		if err != nil {
			return storeError("reload fund", err)
		}
		updated = fund
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"fund_id": fundID,
		"fields":  len(fields),
	}).Info("Fund updated")
	return updated, nil
}

// SetFundName renames a fund. Names are unique across all users.
func (s *Service) SetFundName(ctx context.Context, userID, fundID uint, name string) (*domain.Fund, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	fund, err := s.updateFund(ctx, userID, fundID, map[string]any{"fundName": name}, func(tx repository.Repository) error {
		return ensureNameFree(ctx, tx, name, fundID)
	})
	if err != nil {
		return nil, fundWriteError("rename fund", name, err)
	}
	return fund, nil
}

// SetFundPercentage changes a fund's allocation, leaving its current value out of the sum.
func (s *Service) SetFundPercentage(ctx context.Context, userID, fundID uint, percentage float64) (*domain.Fund, error) {
	fund, err := s.updateFund(ctx, userID, fundID, map[string]any{"fundPercentage": percentage}, func(tx repository.Repository) error {
		return s.allocation.within(tx).Validate(ctx, userID, percentage, fundID)
	})
	if err != nil {
		return nil, storeError("set percentage", err)
	}
	return fund, nil
}

// SetFundSize changes a fund's size label.
func (s *Service) SetFundSize(ctx context.Context, userID, fundID uint, size string) (*domain.Fund, error) {
	size, err := validateSize(size)
	if err != nil {
		return nil, err
	}
	fund, err := s.updateFund(ctx, userID, fundID, map[string]any{"size": size}, nil)
	if err != nil {
		return nil, storeError("set size", err)
	}
	return fund, nil
}

// SetFundNotes replaces a fund's notes. Empty notes clear them.
func (s *Service) SetFundNotes(ctx context.Context, userID, fundID uint, notes string) (*domain.Fund, error) {
	fund, err := s.updateFund(ctx, userID, fundID, map[string]any{"notes": notes}, nil)
	if err != nil {
		return nil, storeError("set notes", err)
	}
	return fund, nil
}

// DeleteFund removes a fund owned by userID. Its deposit and withdrawal
// records are kept and still reference the deleted fund id.
func (s *Service) DeleteFund(ctx context.Context, userID, fundID uint) error {
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		if _, err := s.guard.within(tx).Authorize(ctx, fundID, userID); err != nil {
			return err
		}
		return tx.DeleteFund(ctx, fundID)
	})
	if err != nil {
		return storeError("delete fund", err)
	}
	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"fund_id": fundID,
	}).Info("Fund deleted")
	s.notify(ctx, Event{Type: EventFundDeleted, UserID: userID, FundID: fundID})
	return nil
}
