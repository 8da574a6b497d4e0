package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	authdomain "github.com/briefly-app/briefly/internal/auth/domain"
	creditsdomain "github.com/briefly-app/briefly/internal/credits/domain"
	paymentdomain "github.com/briefly-app/briefly/internal/payment/domain"
	referraldomain "github.com/briefly-app/briefly/internal/referral/domain"
	subscriptiondomain "github.com/briefly-app/briefly/internal/subscription/domain"
	summarizerdomain "github.com/briefly-app/briefly/internal/summarizer/domain"
	summarydomain "github.com/briefly-app/briefly/internal/summary/domain"
	transcriptdomain "github.com/briefly-app/briefly/internal/transcript/domain"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
)

// errorResponse is the single error envelope every non-2xx response uses.
// CreditsRemaining is only populated on 402s.
type errorResponse struct {
	Success          bool   `json:"success"`
	Error            string `json:"error"`
	Message          string `json:"message,omitempty"`
	CreditsRemaining *int   `json:"credits_remaining,omitempty"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, body := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, body)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// badRequestErrors all map to 400 and stringify as their wire code.
var badRequestErrors = []error{
	ErrInvalidRequest,
	videodomain.ErrInvalidVideoID,
	videodomain.ErrInvalidProvider,
	videodomain.ErrInvalidLength,
	referraldomain.ErrUnknownCode,
	referraldomain.ErrSelfReferral,
	referraldomain.ErrAlreadyReferred,
	summarizerdomain.ErrProviderNotFound,
	subscriptiondomain.ErrNoActiveSubscription,
	paymentdomain.ErrInvalidSignature,
	paymentdomain.ErrInvalidPayload,
}

var notFoundErrors = []error{
	userdomain.ErrNotFound,
	creditsdomain.ErrUserNotFound,
	videodomain.ErrNotFound,
	videodomain.ErrSummaryNotFound,
	videodomain.ErrTranscriptNotFound,
	paymentdomain.ErrOrderNotFound,
	gorm.ErrRecordNotFound,
}

// upstreamErrors cover transcript and AI provider failures. Any credit
// charged for the request has already been refunded by the orchestrator.
var upstreamErrors = []error{
	transcriptdomain.ErrTranscriptFetch,
	transcriptdomain.ErrNoTranscript,
	summarizerdomain.ErrGenerationFailed,
	summarizerdomain.ErrEmptyTranscript,
	summarizerdomain.ErrProviderNotReady,
	paymentdomain.ErrGateway,
}

var authErrors = []error{
	authdomain.ErrNoToken,
	authdomain.ErrTokenExpired,
	authdomain.ErrInvalidToken,
	authdomain.ErrInvalidUser,
	authdomain.ErrOAuthExchange,
}

func mapError(err error) (int, errorResponse) {
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return http.StatusUnauthorized, errorResponse{
				Error:   authdomain.Code(err),
				Message: "authentication required",
			}
		}
	}

	if errors.Is(err, creditsdomain.ErrInsufficientCredits) {
		return http.StatusPaymentRequired, errorResponse{
			Error:   creditsdomain.ErrInsufficientCredits.Error(),
			Message: "not enough credits, upgrade to pro for unlimited summaries",
		}
	}

	if errors.Is(err, summarydomain.ErrGenerationInFlight) {
		return http.StatusConflict, errorResponse{
			Error:   summarydomain.ErrGenerationInFlight.Error(),
			Message: "a summary for this video is already being generated, retry shortly",
		}
	}

	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, errorResponse{
				Error:   target.Error(),
				Message: "invalid request",
			}
		}
	}

	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return http.StatusNotFound, errorResponse{
				Error:   "not_found",
				Message: "not found",
			}
		}
	}

	for _, target := range upstreamErrors {
		if errors.Is(err, target) {
			return http.StatusBadGateway, errorResponse{
				Error:   "generation_failed",
				Message: "summary generation failed, any charged credit was refunded",
			}
		}
	}

	return http.StatusInternalServerError, errorResponse{
		Error:   "internal_error",
		Message: "internal server error",
	}
}
