package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// GoogleLogin redirects to the Google consent screen. An optional ?ref=
// referral code round-trips through the OAuth state parameter.
func (s *Server) GoogleLogin(c *gin.Context) {
	state := strings.TrimSpace(c.Query("ref"))
	c.Redirect(http.StatusFound, s.authsvc.GoogleAuthURL(state))
}

func (s *Server) GoogleCallback(c *gin.Context) {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	referralCode := strings.TrimSpace(c.Query("state"))

	pair, user, err := s.authsvc.GoogleCallback(c.Request.Context(), code, referralCode)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tokens":  pair,
		"user":    toUserView(user),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (s *Server) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	pair, err := s.authsvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		unauthorized(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"tokens":  pair,
	})
}

func (s *Server) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.authsvc.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
