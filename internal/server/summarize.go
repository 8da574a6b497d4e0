package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	authdomain "github.com/briefly-app/briefly/internal/auth/domain"
	creditsdomain "github.com/briefly-app/briefly/internal/credits/domain"
	summarydomain "github.com/briefly-app/briefly/internal/summary/domain"
	videodomain "github.com/briefly-app/briefly/internal/video/domain"
)

type summarizeRequest struct {
	Video    string `json:"video" binding:"required"`
	Provider string `json:"provider"`
	Length   string `json:"length"`
}

func (s *Server) Summarize(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		unauthorized(c, authdomain.ErrInvalidToken)
		return
	}

	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if req.Provider == "" {
		req.Provider = string(videodomain.ProviderOpenAI)
	}
	if req.Length == "" {
		req.Length = string(videodomain.LengthMedium)
	}

	result, err := s.summarySvc.Summarize(c.Request.Context(), summarydomain.Request{
		UserID:   user.ID,
		VideoRaw: strings.TrimSpace(req.Video),
		Provider: videodomain.Provider(req.Provider),
		Length:   videodomain.SummaryLength(req.Length),
	})
	if err != nil {
		if errors.Is(err, creditsdomain.ErrInsufficientCredits) {
			balance, balErr := s.creditsSvc.Balance(c.Request.Context(), user.ID)
			if balErr != nil {
				balance = 0
			}
			c.JSON(http.StatusPaymentRequired, errorResponse{
				Error:            creditsdomain.ErrInsufficientCredits.Error(),
				Message:          "not enough credits, upgrade to pro for unlimited summaries",
				CreditsRemaining: &balance,
			})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"cached":            result.Cached,
		"credits_remaining": result.CreditsRemaining,
		"video":             toVideoView(result.Video),
		"summary":           toSummaryView(result.Summary),
	})
}

func (s *Server) GetTranscript(c *gin.Context) {
	transcript, err := s.summarySvc.Transcript(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"transcript": toTranscriptView(transcript),
	})
}
