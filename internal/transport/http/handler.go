package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shelfshare/payments/internal/gateway"
	"github.com/shelfshare/payments/internal/model"
	"github.com/shelfshare/payments/internal/repo"
	"github.com/shelfshare/payments/internal/service"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Services groups everything the router exposes.
type Services struct {
	Ledger      *service.Ledger
	Settlement  *service.Settlement
	Withdrawals *service.Withdrawals
	Reports     *service.Reports
}

func RegisterHandlers(r *gin.Engine, svc Services) {
	v1 := r.Group("/v1", IdentityMiddleware())
	{
		v1.POST("/payments/orders", createOrderHandler(svc.Settlement))
		v1.POST("/payments/verify", verifyPaymentHandler(svc.Settlement))
		v1.GET("/wallet", walletHandler(svc.Ledger))
		v1.POST("/wallet/withdrawals", withdrawHandler(svc.Withdrawals))

		admin := v1.Group("/admin", AdminOnly())
		{
			admin.GET("/withdrawals", listWithdrawalsHandler(svc.Withdrawals))
			admin.PUT("/withdrawals/:id", decideWithdrawalHandler(svc.Withdrawals))
			admin.GET("/summary", summaryHandler(svc.Reports))
		}
	}
}

// statusFor maps service errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, gateway.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, repo.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrZeroFee),
		errors.Is(err, service.ErrNotesRequired),
		errors.Is(err, model.ErrMissingDestination):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

type createOrderReq struct {
	BorrowRequestID uint64 `json:"borrow_request_id" binding:"required"`
}

func createOrderHandler(svc *service.Settlement) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ord, err := svc.CreateOrder(c, actorID(c), req.BorrowRequestID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"order_id": ord.ID,
			"amount":   ord.Amount,
			"currency": ord.Currency,
			"status":   ord.Status,
		})
	}
}

type verifyPaymentReq struct {
	OrderID         string `json:"order_id" binding:"required"`
	PaymentID       string `json:"payment_id" binding:"required"`
	Signature       string `json:"signature" binding:"required"`
	BorrowRequestID uint64 `json:"borrow_request_id" binding:"required"`
}

func verifyPaymentHandler(svc *service.Settlement) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verifyPaymentReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rec, err := svc.VerifyPayment(c, actorID(c), req.OrderID, req.PaymentID, req.Signature, req.BorrowRequestID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"borrow_request_id": rec.BorrowRequestID,
			"is_paid":           rec.IsPaid,
			"platform_fee":      rec.PlatformFee,
			"lender_earnings":   rec.LenderEarnings,
		})
	}
}

func walletHandler(svc *service.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := actorID(c)
		w, err := svc.GetWallet(c, uid)
		if err != nil {
			fail(c, err)
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		txs, total, err := svc.History(c, uid, page, limit)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"balance":          w.Balance,
			"total_earnings":   w.TotalEarnings,
			"pending_earnings": w.PendingEarnings,
			"withdrawn_amount": w.WithdrawnAmount,
			"transactions":     txs,
			"page":             page,
			"limit":            limit,
			"total":            total,
		})
	}
}

type withdrawReq struct {
	Amount      string                  `json:"amount" binding:"required"`
	Destination model.PayoutDestination `json:"destination" binding:"required"`
}

func withdrawHandler(svc *service.Withdrawals) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req withdrawReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		amt, err := decimal.NewFromString(req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
			return
		}
		t, err := svc.Request(c, actorID(c), amt, req.Destination)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"request_id": t.ID, "status": model.WithdrawalPending})
	}
}

type decisionReq struct {
	Action string `json:"action" binding:"required"`
	Notes  string `json:"notes"`
}

func decideWithdrawalHandler(svc *service.Withdrawals) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req decisionReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
			return
		}
		var t *model.WalletTransaction
		switch req.Action {
		case "approve":
			t, err = svc.Approve(c, actorID(c), id, req.Notes)
		case "reject":
			t, err = svc.Reject(c, actorID(c), id, req.Notes)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "action must be approve or reject"})
			return
		}
		if err != nil {
			fail(c, err)
			return
		}
		meta, err := model.DecodeWithdrawalMeta(t.Metadata)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"request_id": t.ID, "status": meta.Status})
	}
}

func listWithdrawalsHandler(svc *service.Withdrawals) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		txs, total, err := svc.List(c, page, limit)
		if err != nil {
			fail(c, err)
			return
		}
		out := make([]gin.H, 0, len(txs))
		for i := range txs {
			meta, err := model.DecodeWithdrawalMeta(txs[i].Metadata)
			if err != nil {
				fail(c, err)
				return
			}
			out = append(out, gin.H{
				"request_id":  txs[i].ID,
				"user_id":     txs[i].UserID,
				"amount":      txs[i].Amount,
				"status":      meta.Status,
				"destination": meta.Destination,
				"decided_by":  meta.DecidedBy,
				"decided_at":  meta.DecidedAt,
				"notes":       meta.Notes,
				"created_at":  txs[i].CreatedAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"withdrawals": out, "page": page, "limit": limit, "total": total})
	}
}

func summaryHandler(svc *service.Reports) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := svc.PlatformSummary(c)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}
