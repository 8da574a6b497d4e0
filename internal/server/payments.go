package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	authdomain "github.com/briefly-app/briefly/internal/auth/domain"
	paymentdomain "github.com/briefly-app/briefly/internal/payment/domain"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
)

const webhookSignatureHeader = "X-Razorpay-Signature"

type createOrderRequest struct {
	Cycle string `json:"cycle"`
}

func (s *Server) CreatePaymentOrder(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		unauthorized(c, authdomain.ErrInvalidToken)
		return
	}

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	order, err := s.paymentSvc.CreateOrder(c.Request.Context(), user.ID, userdomain.BillingCycle(req.Cycle))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order":   toPaymentOrderView(order),
		// Checkout widgets need the public key id alongside the order.
		"key_id": s.cfg.PaymentKeyID,
	})
}

type verifyPaymentRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	PaymentID string `json:"payment_id" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

func (s *Server) VerifyPayment(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		unauthorized(c, authdomain.ErrInvalidToken)
		return
	}

	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	err := s.paymentSvc.VerifyCheckout(c.Request.Context(), user.ID, req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) PaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidPayload)
		return
	}
	signature := strings.TrimSpace(c.GetHeader(webhookSignatureHeader))

	err = s.paymentSvc.HandleWebhook(c.Request.Context(), payload, signature)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		unauthorized(c, authdomain.ErrInvalidToken)
		return
	}

	if err := s.paymentSvc.Cancel(c.Request.Context(), user.ID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) PaymentHistory(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		unauthorized(c, authdomain.ErrInvalidToken)
		return
	}

	orders, err := s.paymentSvc.History(c.Request.Context(), user.ID, limitParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orders":  toPaymentOrderViews(orders),
	})
}
