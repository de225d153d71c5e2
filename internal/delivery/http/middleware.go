package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pricelens/catalog/config"
)

// CORSPolicy is the cross-origin policy applied to browser callers of the ops server
type CORSPolicy struct {
	Origins     []string
	Methods     []string
	Headers     []string
	Credentials bool
	MaxAge      time.Duration
}

// NewCORSPolicy builds the policy from server configuration. Empty method and
// header lists fall back to what the import endpoints need.
func NewCORSPolicy(cfg config.ServerConfig) CORSPolicy {
	p := CORSPolicy{
		Origins:     cfg.AllowedOrigins,
		Methods:     cfg.CORS.AllowedMethods,
		Headers:     cfg.CORS.AllowedHeaders,
		Credentials: cfg.CORS.AllowCredentials,
		MaxAge:      cfg.CORS.MaxAge,
	}
	if len(p.Methods) == 0 {
		p.Methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(p.Headers) == 0 {
		p.Headers = []string{"Content-Type"}
	}
	return p
}

// Allows reports whether origin matches an allowed origin. A trailing "*"
// matches by prefix, e.g. http://localhost:*
func (p CORSPolicy) Allows(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range p.Origins {
		if prefix, wildcard := strings.CutSuffix(allowed, "*"); wildcard {
			if strings.HasPrefix(origin, prefix) {
				return true
			}
		} else if origin == allowed {
			return true
		}
	}
	return false
}

// CORSMiddleware applies p. Preflights from unknown origins are refused.
func CORSMiddleware(p CORSPolicy) gin.HandlerFunc {
	methods := strings.Join(p.Methods, ", ")
	headers := strings.Join(p.Headers, ", ")
	maxAge := strconv.Itoa(int(p.MaxAge / time.Second))

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		allowed := p.Allows(origin)

		if origin != "" {
			c.Writer.Header().Add("Vary", "Origin")
		}
		if allowed {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			if p.Credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if p.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", maxAge)
			}
		}

		if c.Request.Method == http.MethodOptions {
			if origin != "" && !allowed {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RecoveryMiddleware recovers from panics
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.Recovery()
}
