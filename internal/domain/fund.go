package domain

import "time"

// DefaultFundSize is the size label given to funds created without one.
const DefaultFundSize = "Open"

// Fund Model
type Fund struct {
	ID               uint       `gorm:"primaryKey" json:"id"`                                               // Primary key
	FundName         string     `gorm:"column:fundName;uniqueIndex;size:191;not null" json:"fundName"`      // Unique name across all users
	FundPercentage   float64    `gorm:"column:fundPercentage;not null;default:0" json:"fundPercentage"`     // Share of "all" deposits
	Balance          float64    `gorm:"column:balance;not null;default:0" json:"balance"`                   // Running balance, never negative
	Size             string     `gorm:"column:size;not null;default:Open" json:"size"`                      // Status label
	Notes            string     `gorm:"column:notes;type:text" json:"notes"`                                // Free text
	TotalDeposits    float64    `gorm:"column:totalDeposits;not null;default:0" json:"totalDeposits"`       // Lifetime deposited amount
	TotalWithdrawals float64    `gorm:"column:totalWithdrawals;not null;default:0" json:"totalWithdrawals"` // Lifetime withdrawn amount
	LastDeposit      *time.Time `gorm:"column:lastDeposit" json:"lastDeposit"`                              // Time of the latest deposit
	LastWithdrawal   *time.Time `gorm:"column:lastWithdrawal" json:"lastWithdrawal"`                        // Time of the latest withdrawal
	UserID           uint       `gorm:"column:user_id;index;not null" json:"user_id"`                       // Owning user
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
