package ledger

import (
	"context" // Request scoped calls
	"errors"  // Error inspection
	"math"    // Amount checks
	"strconv" // Fund id parsing
	"strings" // Input trimming

	"fund_ledger/internal/domain"     // Fund models and error kinds
	"fund_ledger/internal/repository" // Fund and history store

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// DepositRequest moves money into one fund, or into every fund of the caller
// split by percentage when Target is AllFunds.
type DepositRequest struct {
	Amount float64 // Amount to deposit, sign is ignored
	Target string  // Fund id or AllFunds
	Source string  // Where the money came from
	Notes  string  // Optional notes copied onto each record
}

// WithdrawRequest moves money out of a single fund.
type WithdrawRequest struct {
	Amount float64 // Amount to withdraw, sign is ignored
	FundID uint    // Fund to debit
	Reason string  // Optional reason
	Notes  string  // Optional notes
}

// normalizeAmount returns the magnitude of amount, rejecting zero and non-finite values.
func normalizeAmount(amount float64) (float64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, domain.Errorf(domain.KindInvalidInput, "amount must be a finite number")
	}
	amount = math.Abs(amount) // Sign is ignored
	if amount == 0 {
		return 0, domain.Errorf(domain.KindInvalidInput, "amount must be greater than zero")
	}
	return amount, nil
}

// parseFundID parses a fund id given as text.
func parseFundID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, domain.Errorf(domain.KindInvalidInput, "invalid fund id %q", raw)
	}
	return uint(id), nil
}

// Deposit credits the target fund, or every fund of userID when the target is
// AllFunds. It returns the history records written, one per fund touched.
//
// A deposit to all funds runs one transaction per fund, in fund id order. If a
// fund fails mid-way the funds already credited stay credited; their records
// are returned together with the error. A fund deleted after the list was read
// fails with KindNotFound.
func (s *Service) Deposit(ctx context.Context, userID uint, req DepositRequest) ([]domain.Deposit, error) {
	amount, err := normalizeAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return nil, domain.Errorf(domain.KindInvalidInput, "deposit source is required")
	}

	if strings.TrimSpace(req.Target) != AllFunds {
		fundID, err := parseFundID(req.Target)
		if err != nil {
			return nil, err
		}
		deposit, err := s.depositToFund(ctx, userID, fundID, amount, source, req.Notes)
		if err != nil {
			return nil, err
		}
		return []domain.Deposit{*deposit}, nil
	}

	funds, err := s.repo.FindFundsByUser(ctx, userID)
	if err != nil {
		return nil, storeError("list funds", err)
	}
	if len(funds) == 0 {
		return nil, domain.Errorf(domain.KindNotFound, "no funds to deposit into")
	}
	deposits := make([]domain.Deposit, 0, len(funds))
	for _, fund := range funds {
		share := amount * (fund.FundPercentage / 100) // 0% funds still get a record
		deposit, err := s.depositToFund(ctx, userID, fund.ID, share, source, req.Notes)
		if err != nil {
			if errors.Is(err, domain.ErrRecordNotFound) {
				err = domain.Errorf(domain.KindNotFound, "fund %d no longer exists", fund.ID) // Deleted since the list was read
			}
			if len(deposits) > 0 {
				s.log.WithFields(logrus.Fields{
					"user_id":   userID,
					"fund_id":   fund.ID,
					"committed": len(deposits),
					"remaining": len(funds) - len(deposits),
				}).Warn("Deposit to all funds stopped part way")
			}
			return deposits, err
		}
		deposits = append(deposits, *deposit)
	}
	return deposits, nil
}

// depositToFund credits one fund and writes its deposit record in a single transaction.
func (s *Service) depositToFund(ctx context.Context, userID, fundID uint, amount float64, source, notes string) (*domain.Deposit, error) {
	deposit := &domain.Deposit{
		DepositSource:   source,
		DepositedTo:     fundID,
		DepositedAmount: amount,
		Notes:           notes,
		UserID:          userID,
	}
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		if _, err := s.guard.within(tx).Authorize(ctx, fundID, userID); err != nil {
			return err
		}
		if err := tx.CreditFund(ctx, fundID, amount, s.now()); err != nil { // balance = balance + amount
			return storeError("credit fund", err)
		}
		if err := tx.CreateDeposit(ctx, deposit); err != nil { // Rolls back the credit on failure
			return storeError("log deposit", err)
		}
		return nil
	})
	if err != nil {
		err = storeError("deposit", err)
		s.log.WithFields(logrus.Fields{
			"user_id": userID,
			"fund_id": fundID,
			"amount":  amount,
			"error":   err.Error(),
		}).Error("Deposit failed")
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"user_id":    userID,
		"fund_id":    fundID,
		"deposit_id": deposit.ID,
		"amount":     amount,
		"source":     source,
	}).Info("Deposit transaction")
	s.notify(ctx, Event{Type: EventDepositCreated, UserID: userID, FundID: fundID, RecordID: deposit.ID, Amount: amount})
	return deposit, nil
}

// Withdraw debits a single fund and writes its withdrawal record. A withdrawal
// larger than the balance fails with KindInsufficientFunds and changes nothing.
func (s *Service) Withdraw(ctx context.Context, userID uint, req WithdrawRequest) (*domain.Withdrawal, error) {
	amount, err := normalizeAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	withdrawal := &domain.Withdrawal{
		WithdrawnFrom:    req.FundID,
		WithdrawnAmount:  amount,
		WithdrawalReason: req.Reason,
		Notes:            req.Notes,
		UserID:           userID,
	}
	err = s.repo.Transaction(ctx, func(tx repository.Repository) error {
		fund, err := s.guard.within(tx).Authorize(ctx, req.FundID, userID)
		if err != nil {
			return err
		}
		debited, err := tx.DebitFund(ctx, fund.ID, amount, s.now()) // Only when balance >= amount
		if err != nil {
			return storeError("debit fund", err)
		}
		if !debited {
			return domain.Errorf(domain.KindInsufficientFunds,
				"Insufficient funds: balance %.2f is less than %.2f", fund.Balance, amount)
		}
		if err := tx.CreateWithdrawal(ctx, withdrawal); err != nil {
			return storeError("log withdrawal", err)
		}
		return nil
	})
	if err != nil {
		err = storeError("withdraw", err)
		s.log.WithFields(logrus.Fields{
			"user_id": userID,
			"fund_id": req.FundID,
			"amount":  amount,
			"error":   err.Error(),
		}).Error("Withdrawal failed")
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"user_id":       userID,
		"fund_id":       req.FundID,
		"withdrawal_id": withdrawal.ID,
		"amount":        amount,
	}).Info("Withdrawal transaction")
	s.notify(ctx, Event{Type: EventWithdrawalCreated, UserID: userID, FundID: req.FundID, RecordID: withdrawal.ID, Amount: amount})
	return withdrawal, nil
}
