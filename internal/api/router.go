package api

import (
	"fund_ledger/internal/ledger"     // Ledger operations
	"fund_ledger/internal/middleware" // Custom middleware

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/gorm"               // GORM ORM library
)

// NewRouter wires every route of the service
func NewRouter(db *gorm.DB, svc *ledger.Service, cache ReadCache, jwtSecret string, log *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	// Auth routes
	r.POST("/user", RegisterHandler(db))               // Registration endpoint
	r.POST("/user/login", LoginHandler(db, jwtSecret)) // Login endpoint

	auth := middleware.JWTAuthMiddleware(jwtSecret)

	// Fund routes (protected by JWT)
	fundGroup := r.Group("/fund", auth)
	fundGroup.GET("", ListFundsHandler(svc, cache))                          // List funds
	fundGroup.POST("", CreateFundHandler(svc, cache))                        // Create fund
	fundGroup.GET("/:id", GetFundHandler(svc))                               // Read one fund
	fundGroup.DELETE("/:id", DeleteFundHandler(svc, cache))                  // Delete fund, history kept
	fundGroup.PATCH("/:id/name", SetFundNameHandler(svc, cache))             // Rename
	fundGroup.PATCH("/:id/percentage", SetFundPercentageHandler(svc, cache)) // Change allocation
	fundGroup.PATCH("/:id/size", SetFundSizeHandler(svc, cache))             // Change size label
	fundGroup.PATCH("/:id/notes", SetFundNotesHandler(svc, cache))           // Change notes

	// Deposit routes
	depositGroup := r.Group("/deposit", auth)
	depositGroup.POST("", DepositHandler(svc, cache))     // Deposit to a fund or to all funds
	depositGroup.GET("", ListDepositsHandler(svc, cache)) // History, ?for=all|<fund id>
	depositGroup.GET("/:id", GetDepositHandler(svc))      // One deposit

	// Withdrawal routes
	withdrawalGroup := r.Group("/withdrawal", auth)
	withdrawalGroup.POST("", WithdrawHandler(svc, cache))       // Withdraw from a fund
	withdrawalGroup.GET("", ListWithdrawalsHandler(svc, cache)) // History, ?for=all|<fund id>
	withdrawalGroup.GET("/:id", GetWithdrawalHandler(svc))      // One withdrawal

	return r
}
