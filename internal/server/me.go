package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	authdomain "github.com/briefly-app/briefly/internal/auth/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (s *Server) Me(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		unauthorized(c, authdomain.ErrInvalidToken)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    toUserView(user),
	})
}

func (s *Server) MyUsage(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		unauthorized(c, authdomain.ErrInvalidToken)
		return
	}

	logs, err := s.usageSvc.ListForUser(c.Request.Context(), user.ID, limitParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"usage":   toUsageLogViews(logs),
	})
}

func (s *Server) MyTransactions(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		unauthorized(c, authdomain.ErrInvalidToken)
		return
	}

	txs, err := s.creditsSvc.ListTransactions(c.Request.Context(), user.ID, limitParam(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": toTransactionViews(txs),
	})
}

func limitParam(c *gin.Context) int {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
