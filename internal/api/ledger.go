package api

import (
	"fund_ledger/internal/domain" // Importing domain models
	"fund_ledger/internal/ledger" // Ledger operations
	"math"                        // Whole number check
	"net/http"                    // HTTP status codes
	"strconv"                     // String conversion

	"github.com/gin-gonic/gin" // Gin web framework
)

// DepositRequest is the body of POST /deposit
type DepositRequest struct {
	DepositedAmount *float64 `json:"depositedAmount" binding:"required"` // Amount, sign ignored
	DepositedTo     any      `json:"depositedTo" binding:"required"`     // Fund id or "all"
	DepositSource   string   `json:"depositSource" binding:"required"`   // Where the money came from
	Notes           string   `json:"notes"`                              // Optional notes
}

// WithdrawRequest is the body of POST /withdrawal
type WithdrawRequest struct {
	WithdrawnAmount  *float64 `json:"withdrawnAmount" binding:"required"` // Amount, sign ignored
	WithdrawnFrom    uint     `json:"withdrawnFrom" binding:"required"`   // Fund id
	WithdrawalReason string   `json:"withdrawalReason"`                   // Optional reason
	Notes            string   `json:"notes"`                              // Optional notes
}

// depositTarget turns the depositedTo field into a ledger target
func depositTarget(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		if t <= 0 || t != math.Trunc(t) {
			return "", false // Fund ids are positive whole numbers
		}
		return strconv.FormatUint(uint64(t), 10), true
	default:
		return "", false
	}
}

// DepositHandler credits one fund or splits the amount across all funds
func DepositHandler(svc *ledger.Service, cache ReadCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req DepositRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid request")
			return
		}
		target, ok := depositTarget(req.DepositedTo)
		if !ok {
			respondBadRequest(c, `depositedTo must be a fund id or "all"`)
			return
		}
		ctx := c.Request.Context()
		deposits, err := svc.Deposit(ctx, userID, ledger.DepositRequest{
			Amount: *req.DepositedAmount,
			Target: target,
			Source: req.DepositSource,
			Notes:  req.Notes,
		})
		if len(deposits) > 0 {
			cache.invalidate(ctx, userID) // Committed funds changed even on partial failure
		}
		if err != nil {
			status := statusByKind[domain.KindOf(err)]
			c.JSON(status, gin.H{"error": errorBody(err), "committed": deposits})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": deposits})
	}
}

// WithdrawHandler debits a single fund
func WithdrawHandler(svc *ledger.Service, cache ReadCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req WithdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid request")
			return
		}
		ctx := c.Request.Context()
		withdrawal, err := svc.Withdraw(ctx, userID, ledger.WithdrawRequest{
			Amount: *req.WithdrawnAmount,
			FundID: req.WithdrawnFrom,
			Reason: req.WithdrawalReason,
			Notes:  req.Notes,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		cache.invalidate(ctx, userID)
		c.JSON(http.StatusCreated, gin.H{"data": withdrawal})
	}
}

// historyHandler serves a history list for the "for" query scope, "all" by default
func historyHandler[T any](cache ReadCache, kind string, list func(c *gin.Context, userID uint, scope string) ([]T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		scope := c.DefaultQuery("for", ledger.AllFunds)
		ctx := c.Request.Context()
		var records []T
		if cache.get(ctx, userID, &records, kind, scope) {
			c.JSON(http.StatusOK, gin.H{"data": records, "cached": true})
			return
		}
		records, err := list(c, userID, scope)
		if err != nil {
			respondError(c, err)
			return
		}
		if records == nil {
			records = []T{} // Render an empty list, not null
		}
		cache.set(ctx, userID, records, kind, scope)
		c.JSON(http.StatusOK, gin.H{"data": records, "cached": false})
	}
}

// ListDepositsHandler returns deposits for all funds or one fund
func ListDepositsHandler(svc *ledger.Service, cache ReadCache) gin.HandlerFunc {
	return historyHandler(cache, "deposits", func(c *gin.Context, userID uint, scope string) ([]domain.Deposit, error) {
		return svc.ListDeposits(c.Request.Context(), userID, scope)
	})
}

// ListWithdrawalsHandler returns withdrawals for all funds or one fund
func ListWithdrawalsHandler(svc *ledger.Service, cache ReadCache) gin.HandlerFunc {
	return historyHandler(cache, "withdrawals", func(c *gin.Context, userID uint, scope string) ([]domain.Withdrawal, error) {
		return svc.ListWithdrawals(c.Request.Context(), userID, scope)
	})
}

// GetDepositHandler returns a single deposit
func GetDepositHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		deposit, err := svc.GetDeposit(c.Request.Context(), userID, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": deposit})
	}
}

// GetWithdrawalHandler returns a single withdrawal
func GetWithdrawalHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		withdrawal, err := svc.GetWithdrawal(c.Request.Context(), userID, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": withdrawal})
	}
}
