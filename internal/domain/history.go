package domain

import "time"

// Deposit Model. Rows are written once and never updated.
type Deposit struct {
	ID              uint      `gorm:"primaryKey" json:"id"`                                   // Primary key
	DepositSource   string    `gorm:"column:depositSource;not null" json:"depositSource"`     // Where the money came from
	DepositedTo     uint      `gorm:"column:depositedTo;index;not null" json:"depositedTo"`   // Fund credited (kept after fund deletion)
	DepositedAmount float64   `gorm:"column:depositedAmount;not null" json:"depositedAmount"` // Amount credited to that fund
	Notes           string    `gorm:"column:notes;type:text" json:"notes"`                    // Free text
	UserID          uint      `gorm:"column:user_id;index;not null" json:"user_id"`           // Owning user
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Withdrawal Model. Rows are written once and never updated.
type Withdrawal struct {
	ID               uint      `gorm:"primaryKey" json:"id"`                                     // Primary key
	WithdrawnFrom    uint      `gorm:"column:withdrawnFrom;index;not null" json:"withdrawnFrom"` // Fund debited (kept after fund deletion)
	WithdrawnAmount  float64   `gorm:"column:withdrawnAmount;not null" json:"withdrawnAmount"`   // Amount debited
	WithdrawalReason string    `gorm:"column:withdrawalReason" json:"withdrawalReason"`          // Optional reason
	Notes            string    `gorm:"column:notes;type:text" json:"notes"`                      // Free text
	UserID           uint      `gorm:"column:user_id;index;not null" json:"user_id"`             // Owning user
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
