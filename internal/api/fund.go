package api

import (
	"fund_ledger/internal/domain"     // Importing domain models
	"fund_ledger/internal/ledger"     // Ledger operations
	"fund_ledger/internal/middleware" // Authenticated user lookup
	"net/http"                        // HTTP status codes
	"strconv"                         // String conversion

	"github.com/gin-gonic/gin" // Gin web framework
)

// CreateFundRequest is the body of POST /fund. Optional fields are pointers
// so that absent values get their defaults here, before reaching the ledger.
type CreateFundRequest struct {
	FundName       string   `json:"fundName" binding:"required"`       // Unique fund name
	FundPercentage *float64 `json:"fundPercentage" binding:"required"` // Allocation share
	Balance        *float64 `json:"balance"`                           // Opening balance, default 0
	Size           any      `json:"size"`                              // Label or number, default "Open"
	Notes          *string  `json:"notes"`                             // Default empty
}

// SetNameRequest is the body of PATCH /fund/:id/name
type SetNameRequest struct {
	FundName string `json:"fundName" binding:"required"` // New name
}

// SetPercentageRequest is the body of PATCH /fund/:id/percentage
type SetPercentageRequest struct {
	FundPercentage *float64 `json:"fundPercentage" binding:"required"` // New allocation share
}

// SetSizeRequest is the body of PATCH /fund/:id/size
type SetSizeRequest struct {
	Size any `json:"size" binding:"required"` // Label or number
}

// SetNotesRequest is the body of PATCH /fund/:id/notes
type SetNotesRequest struct {
	Notes *string `json:"notes" binding:"required"` // New notes, may be empty
}

// currentUser returns the authenticated user or aborts with 401
func currentUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "unauthorized", "detail": "Unauthorized"}})
	}
	return userID, ok
}

// pathID parses a numeric path parameter or responds with 400
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondBadRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// scalarString accepts a JSON string or number and returns it as text
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// ListFundsHandler returns every fund of the authenticated user
func ListFundsHandler(svc *ledger.Service, cache ReadCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		var funds []domain.Fund
		if cache.get(ctx, userID, &funds, "funds") {
			c.JSON(http.StatusOK, gin.H{"data": funds, "cached": true})
			return
		}
		funds, err := svc.ListFunds(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		cache.set(ctx, userID, funds, "funds")
		c.JSON(http.StatusOK, gin.H{"data": funds, "cached": false})
	}
}

// GetFundHandler returns one fund of the authenticated user
func GetFundHandler(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		fundID, ok := pathID(c, "id")
		if !ok {
			return
		}
		fund, err := svc.GetFund(c.Request.Context(), userID, fundID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": fund})
	}
}

// CreateFundHandler stores a new fund after applying defaults
func CreateFundHandler(svc *ledger.Service, cache ReadCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		var req CreateFundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid request")
			return
		}
		create := ledger.CreateFundRequest{
			Name:       req.FundName,
			Percentage: *req.FundPercentage,
			Size:       domain.DefaultFundSize,
		}
		if req.Balance != nil {
			create.Balance = *req.Balance
		}
		if req.Size != nil {
			size, ok := scalarString(req.Size)
			if !ok {
				respondBadRequest(c, "size must be a string or a number")
				return
			}
			create.Size = size
		}
		if req.Notes != nil {
			create.Notes = *req.Notes
		}
		ctx := c.Request.Context()
		fund, err := svc.CreateFund(ctx, userID, create)
		if err != nil {
			respondError(c, err)
			return
		}
		cache.invalidate(ctx, userID)
		c.JSON(http.StatusCreated, gin.H{"data": fund})
	}
}

// updateFundHandler decodes body into T, applies update and returns the fund
func updateFundHandler[T any](cache ReadCache, update func(c *gin.Context, userID, fundID uint, body *T) (*domain.Fund, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		fundID, ok := pathID(c, "id")
		if !ok {
			return
		}
		var body T
		if err := c.ShouldBindJSON(&body); err != nil {
			respondBadRequest(c, "Invalid request")
			return
		}
		fund, err := update(c, userID, fundID, &body)
		if err != nil {
			respondError(c, err)
			return
		}
		cache.invalidate(c.Request.Context(), userID)
		c.JSON(http.StatusOK, gin.H{"data": fund})
	}
}

// SetFundNameHandler renames a fund
func SetFundNameHandler(svc *ledger.Service, cache ReadCache) gin.HandlerFunc {
	return updateFundHandler(cache, func(c *gin.Context, userID, fundID uint, body *SetNameRequest) (*domain.Fund, error) {
		return svc.SetFundName(c.Request.Context(), userID, fundID, body.FundName)
	})
}

// SetFundPercentageHandler changes a fund's allocation
func SetFundPercentageHandler(svc *ledger.Service, cache ReadCache) gin.HandlerFunc {
	return updateFundHandler(cache, func(c *gin.Context, userID, fundID uint, body *SetPercentageRequest) (*domain.Fund, error) {
		return svc.SetFundPercentage(c.Request.Context(), userID, fundID, *body.FundPercentage)
	})
}

// SetFundSizeHandler changes a fund's size label
func SetFundSizeHandler(svc *ledger.Service, cache ReadCache) gin.HandlerFunc {
	return updateFundHandler(cache, func(c *gin.Context, userID, fundID uint, body *SetSizeRequest) (*domain.Fund, error) {
		size, ok := scalarString(body.Size)
		if !ok {
			return nil, domain.Errorf(domain.KindInvalidInput, "size must be a string or a number")
		}
		return svc.SetFundSize(c.Request.Context(), userID, fundID, size)
	})
}

// SetFundNotesHandler replaces a fund's notes
func SetFundNotesHandler(svc *ledger.Service, cache ReadCache) gin.HandlerFunc {
	return updateFundHandler(cache, func(c *gin.Context, userID, fundID uint, body *SetNotesRequest) (*domain.Fund, error) {
		return svc.SetFundNotes(c.Request.Context(), userID, fundID, *body.Notes)
	})
}

// DeleteFundHandler removes a fund, keeping its history
func DeleteFundHandler(svc *ledger.Service, cache ReadCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		fundID, ok := pathID(c, "id")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		if err := svc.DeleteFund(ctx, userID, fundID); err != nil {
			respondError(c, err)
			return
		}
		cache.invalidate(ctx, userID)
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": fundID, "deleted": true}})
	}
}
