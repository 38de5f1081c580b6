package api

import (
	"errors"                      // Error inspection
	"fund_ledger/internal/domain" // Ledger error taxonomy
	"net/http"                    // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// statusByKind maps ledger failures to HTTP status codes
var statusByKind = map[domain.Kind]int{
	domain.KindForbidden:          http.StatusForbidden,
	domain.KindNotFound:           http.StatusNotFound,
	domain.KindInvalidPercentage:  http.StatusUnprocessableEntity,
	domain.KindInvalidInput:       http.StatusUnprocessableEntity,
	domain.KindInsufficientFunds:  http.StatusConflict,
	domain.KindPersistenceFailure: http.StatusInternalServerError,
}

// errorBody renders err as {"kind": ..., "detail": ...}
func errorBody(err error) gin.H {
	kind := domain.KindOf(err)
	detail := "internal error" // Never leak driver messages
	var ledgerErr *domain.Error
	if errors.As(err, &ledgerErr) && kind != domain.KindPersistenceFailure {
		detail = ledgerErr.Detail
	}
	return gin.H{"kind": kind, "detail": detail}
}

// respondError writes a ledger failure with its mapped status
func respondError(c *gin.Context, err error) {
	status, ok := statusByKind[domain.KindOf(err)]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": errorBody(err)})
}

// respondBadRequest reports a body or parameter that could not be decoded
func respondBadRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": domain.KindInvalidInput, "detail": detail}})
}
