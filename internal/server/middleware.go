package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authdomain "github.com/briefly-app/briefly/internal/auth/domain"
	"github.com/briefly-app/briefly/internal/ratelimit"
	userdomain "github.com/briefly-app/briefly/internal/user/domain"
)

const contextUserKey = "auth_user"

// AuthRequired resolves the bearer token into a user. 401 responses carry a
// machine code: NO_TOKEN, TOKEN_EXPIRED, INVALID_TOKEN or INVALID_USER.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			unauthorized(c, authdomain.ErrNoToken)
			return
		}

		user, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			unauthorized(c, err)
			return
		}

		c.Set(contextUserKey, user)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
		Error:   authdomain.Code(err),
		Message: "authentication required",
	})
}

// SummarizeLimits enforces the per-plan daily summary quota and the redis
// token bucket. Runs after AuthRequired. A limiter failure allows the
// request through.
func (s *Server) SummarizeLimits() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			unauthorized(c, authdomain.ErrInvalidToken)
			return
		}

		plan := s.plans.Get()
		limit := plan.FreeDailyLimit
		if user.IsPro() {
			limit = plan.ProDailyLimit
		}
		if limit > 0 && user.SummariesToday >= limit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
				Error:   "daily_limit_reached",
				Message: "daily summary limit reached, resets at midnight UTC",
			})
			return
		}

		result, err := s.limiter.Allow(c.Request.Context(), ratelimit.UserKey(user.ID.String()))
		if err != nil {
			s.log.Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
				Error:   "rate_limited",
				Message: "too many requests, slow down",
			})
			return
		}

		c.Next()
	}
}

func currentUser(c *gin.Context) *userdomain.User {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return nil
	}
	user, ok := value.(*userdomain.User)
	if !ok {
		return nil
	}
	return user
}
