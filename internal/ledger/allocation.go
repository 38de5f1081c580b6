package ledger

import (
	"context" // Request scoped lookups
	"math"    // NaN check

	"fund_ledger/internal/domain"     // Error kinds
	"fund_ledger/internal/repository" // Fund store
)

// MaxAllocation is the ceiling for the sum of one user's fund percentages.
const MaxAllocation = 100.0

// allocationEpsilon absorbs float error when summing fractional percentages.
const allocationEpsilon = 1e-9

// AllocationValidator keeps a user's fund percentages from summing past 100.
type AllocationValidator struct {
	repo repository.Repository // Store the percentages are summed from
}

// NewAllocationValidator returns a validator reading funds from repo.
func NewAllocationValidator(repo repository.Repository) *AllocationValidator {
	return &AllocationValidator{repo: repo}
}

// within returns a validator summing through tx
func (v *AllocationValidator) within(tx repository.Repository) *AllocationValidator {
	return &AllocationValidator{repo: tx}
}

// Validate checks that giving a fund of userID the candidate percentage keeps
// the user's total within 100. excludeFundID, when non-zero, is the fund being
// updated; its current percentage is left out of the sum.
func (v *AllocationValidator) Validate(ctx context.Context, userID uint, candidate float64, excludeFundID uint) error {
	if math.IsNaN(candidate) || candidate < 0 || candidate > MaxAllocation {
		return domain.Errorf(domain.KindInvalidPercentage, "Invalid percentage value (%g)", candidate)
	}
	sum, err := v.repo.SumPercentages(ctx, userID, excludeFundID) // Locked on MySQL until the transaction ends
	if err != nil {
		return domain.Persistence("sum percentages", err)
	}
	if sum+candidate > MaxAllocation+allocationEpsilon {
		return domain.Errorf(domain.KindInvalidPercentage,
			"Invalid percentage value (%g): allocation would reach %g%%", candidate, sum+candidate)
	}
	return nil
}
