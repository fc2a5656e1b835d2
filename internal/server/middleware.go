package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const contextUserIDKey = "user_id"

// AuthRequired validates the bearer token and stores the caller's user id on
// the context. Identity is caller-supplied; handlers trust it and apply only
// the domain's own ownership rules.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := s.identityFromRequest(c)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(contextUserIDKey, userID)
		c.Next()
	}
}

// OptionalAuth resolves identity when a token is present and leaves the
// request anonymous otherwise.
func (s *Server) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, err := s.identityFromRequest(c); err == nil {
			c.Set(contextUserIDKey, userID)
		}
		c.Next()
	}
}

func (s *Server) identityFromRequest(c *gin.Context) (snowflake.ID, error) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(raw) == "" {
		return 0, ErrUnauthorized
	}

	token, err := jwt.Parse(strings.TrimSpace(raw), func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return []byte(s.cfg.AuthJWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, ErrUnauthorized
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return 0, ErrUnauthorized
	}
	userID, err := snowflake.ParseString(subject)
	if err != nil {
		return 0, ErrUnauthorized
	}
	return userID, nil
}

func currentUserID(c *gin.Context) snowflake.ID {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0
	}
	userID, ok := value.(snowflake.ID)
	if !ok {
		return 0
	}
	return userID
}

// PurchaseRateLimit throttles purchase attempts per buyer. A limiter
// backend failure lets the request through: settlement correctness never
// depends on redis being up.
func (s *Server) PurchaseRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		allowed, retryAfter, err := s.limiter.AllowPurchase(c.Request.Context(), currentUserID(c))
		if err != nil {
			s.log.Warn("purchase rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !allowed {
			if retryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			}
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http.access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
