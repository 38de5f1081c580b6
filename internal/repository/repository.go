// Package repository persists funds and their deposit and withdrawal history with gorm.
package repository

import (
	"context" // Request scoped queries
	"errors"  // Error inspection
	"fmt"     // Error wrapping
	"strings" // Driver message checks
	"time"    // Deposit and withdrawal timestamps

	"fund_ledger/internal/domain" // Importing domain models

	"gorm.io/gorm"        // GORM ORM library
	"gorm.io/gorm/clause" // Row locking
)

// Repository is the persistence boundary used by the ledger.
type Repository interface {
	CreateFund(ctx context.Context, fund *domain.Fund) error
	FindFund(ctx context.Context, id uint) (*domain.Fund, error)
	FindFundByName(ctx context.Context, name string) (*domain.Fund, error)
	FindFundsByUser(ctx context.Context, userID uint) ([]domain.Fund, error)
	UpdateFund(ctx context.Context, id uint, fields map[string]any) error
	DeleteFund(ctx context.Context, id uint) error
	SumPercentages(ctx context.Context, userID, excludeFundID uint) (float64, error)

	CreditFund(ctx context.Context, id uint, amount float64, at time.Time) error
	DebitFund(ctx context.Context, id uint, amount float64, at time.Time) (bool, error)

	CreateDeposit(ctx context.Context, deposit *domain.Deposit) error
	CreateWithdrawal(ctx context.Context, withdrawal *domain.Withdrawal) error
	FindDeposit(ctx context.Context, id uint) (*domain.Deposit, error)
	FindWithdrawal(ctx context.Context, id uint) (*domain.Withdrawal, error)
	ListDeposits(ctx context.Context, userID, fundID uint) ([]domain.Deposit, error)
	ListWithdrawals(ctx context.Context, userID, fundID uint) ([]domain.Withdrawal, error)

	// Transaction runs fn against a repository bound to a single database
	// transaction. Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx Repository) error) error
}

// GormRepository implements Repository on top of a *gorm.DB.
type GormRepository struct {
	db       *gorm.DB
	lockRows bool // Row locks are only issued on dialects that support them
}

// New returns a repository using db. SELECT ... FOR UPDATE is used on MySQL.
func New(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db, lockRows: db.Dialector.Name() == "mysql"}
}

var _ Repository = (*GormRepository)(nil)

func (r *GormRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx) // Bind the request context to the query
}

// notFound maps gorm's missing-row error to the domain sentinel.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrRecordNotFound
	}
	return err
}

// duplicate maps a unique constraint violation to the domain sentinel. The
// message checks cover drivers without gorm error translation.
func duplicate(err error) error {
	msg := err.Error()
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(msg, "UNIQUE constraint failed") || // SQLite
		strings.Contains(msg, "Duplicate entry") { // MySQL 1062
		return fmt.Errorf("%w: %v", domain.ErrDuplicateKey, err)
	}
	return err
}

// CreateFund inserts a new fund
func (r *GormRepository) CreateFund(ctx context.Context, fund *domain.Fund) error {
	if err := r.conn(ctx).Create(fund).Error; err != nil {
		return fmt.Errorf("create fund: %w", duplicate(err))
	}
	return nil
}

// FindFund loads a fund by primary key
func (r *GormRepository) FindFund(ctx context.Context, id uint) (*domain.Fund, error) {
	var fund domain.Fund
	if err := r.conn(ctx).First(&fund, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &fund, nil
}

// FindFundByName loads a fund by its system-wide unique name
func (r *GormRepository) FindFundByName(ctx context.Context, name string) (*domain.Fund, error) {
	var fund domain.Fund
	if err := r.conn(ctx).Where("fundName = ?", name).First(&fund).Error; err != nil {
		return nil, notFound(err)
	}
	return &fund, nil
}

// FindFundsByUser lists all funds owned by userID, oldest first
func (r *GormRepository) FindFundsByUser(ctx context.Context, userID uint) ([]domain.Fund, error) {
	var funds []domain.Fund
	if err := r.conn(ctx).Where("user_id = ?", userID).Order("id asc").Find(&funds).Error; err != nil {
		return nil, fmt.Errorf("list funds: %w", err)
	}
	return funds, nil
}

// UpdateFund writes the given columns of a fund
func (r *GormRepository) UpdateFund(ctx context.Context, id uint, fields map[string]any) error {
	res := r.conn(ctx).Model(&domain.Fund{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update fund: %w", duplicate(res.Error))
	}
	if res.RowsAffected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// DeleteFund removes a fund. History rows referencing it are left in place.
func (r *GormRepository) DeleteFund(ctx context.Context, id uint) error {
	res := r.conn(ctx).Delete(&domain.Fund{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete fund: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// SumPercentages adds up the allocation of userID's funds, skipping excludeFundID when non-zero
func (r *GormRepository) SumPercentages(ctx context.Context, userID, excludeFundID uint) (float64, error) {
	query := r.conn(ctx).Model(&domain.Fund{}).Where("user_id = ?", userID)
	if excludeFundID != 0 {
		query = query.Where("id <> ?", excludeFundID)
	}
	if r.lockRows {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"}) // SELECT ... FOR UPDATE
	}
	var percentages []float64
	if err := query.Pluck("fundPercentage", &percentages).Error; err != nil {
		return 0, fmt.Errorf("sum percentages: %w", err)
	}
	var total float64
	for _, p := range percentages {
		total += p
	}
	return total, nil
}

// CreditFund atomically adds amount to the balance and deposit total of a fund
func (r *GormRepository) CreditFund(ctx context.Context, id uint, amount float64, at time.Time) error {
	res := r.conn(ctx).Model(&domain.Fund{}).Where("id = ?", id).Updates(map[string]any{
		"balance":       gorm.Expr("balance + ?", amount),       // Atomic increment
		"totalDeposits": gorm.Expr("totalDeposits + ?", amount), // Running total
		"lastDeposit":   at,                                     // Last deposit time
	})
	if res.Error != nil {
		return fmt.Errorf("credit fund: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

// DebitFund atomically subtracts amount from a fund when the balance covers it.
// It reports false, without touching the row, when the balance is too low.
func (r *GormRepository) DebitFund(ctx context.Context, id uint, amount float64, at time.Time) (bool, error) {
	res := r.conn(ctx).Model(&domain.Fund{}).
		Where("id = ? AND balance >= ?", id, amount). // Never overdraws
		Updates(map[string]any{
			"balance":          gorm.Expr("balance - ?", amount),          // Atomic decrement
			"totalWithdrawals": gorm.Expr("totalWithdrawals + ?", amount), // Running total
			"lastWithdrawal":   at,                                        // Last withdrawal time
		})
	if res.Error != nil {
		return false, fmt.Errorf("debit fund: %w", res.Error)
	}
	return res.RowsAffected == 1, nil // Zero rows: balance too low
}

// CreateDeposit appends a deposit record
func (r *GormRepository) CreateDeposit(ctx context.Context, deposit *domain.Deposit) error {
	if err := r.conn(ctx).Create(deposit).Error; err != nil {
		return fmt.Errorf("create deposit: %w", err)
	}
	return nil
}

// CreateWithdrawal appends a withdrawal record
func (r *GormRepository) CreateWithdrawal(ctx context.Context, withdrawal *domain.Withdrawal) error {
	if err := r.conn(ctx).Create(withdrawal).Error; err != nil {
		return fmt.Errorf("create withdrawal: %w", err)
	}
	return nil
}

// FindDeposit loads a deposit by primary key
func (r *GormRepository) FindDeposit(ctx context.Context, id uint) (*domain.Deposit, error) {
	var deposit domain.Deposit
	if err := r.conn(ctx).First(&deposit, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &deposit, nil
}

// FindWithdrawal loads a withdrawal by primary key
func (r *GormRepository) FindWithdrawal(ctx context.Context, id uint) (*domain.Withdrawal, error) {
	var withdrawal domain.Withdrawal
	if err := r.conn(ctx).First(&withdrawal, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &withdrawal, nil
}

// ListDeposits returns userID's deposits in creation order, restricted to fundID when non-zero
func (r *GormRepository) ListDeposits(ctx context.Context, userID, fundID uint) ([]domain.Deposit, error) {
	query := r.conn(ctx).Where("user_id = ?", userID)
	if fundID != 0 {
		query = query.Where("depositedTo = ?", fundID)
	}
	var deposits []domain.Deposit
	if err := query.Order("created_at asc, id asc").Find(&deposits).Error; err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}
	return deposits, nil
}

// ListWithdrawals returns userID's withdrawals in creation order, restricted to fundID when non-zero
func (r *GormRepository) ListWithdrawals(ctx context.Context, userID, fundID uint) ([]domain.Withdrawal, error) {
	query := r.conn(ctx).Where("user_id = ?", userID)
	if fundID != 0 {
		query = query.Where("withdrawnFrom = ?", fundID)
	}
	var withdrawals []domain.Withdrawal
	if err := query.Order("created_at asc, id asc").Find(&withdrawals).Error; err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return withdrawals, nil
}

// Transaction runs fn inside a database transaction
func (r *GormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx, lockRows: r.lockRows})
	})
}

// CreateUser inserts a user. A taken username fails with domain.ErrDuplicateKey.
func (r *GormRepository) CreateUser(ctx context.Context, user *domain.User) error {
	if err := r.conn(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", duplicate(err))
	}
	return nil
}

// FindUserByUsername loads a user by login name
func (r *GormRepository) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	if err := r.conn(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}
