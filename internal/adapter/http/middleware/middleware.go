// Package middleware implements the gin cross-cutting concerns the HTTP
// surface (spec §6.1) needs: tenant resolution, request IDs, and access
// logging, in the style the teacher's own middleware package used.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// CtxTenantID is the gin context key every tenant-scoped handler reads.
	CtxTenantID = "tenant_id"
	// CtxRequestID is the gin context key the error translator reads to echo
	// a request id back to the caller.
	CtxRequestID = "request_id"

	tenantHeader = "X-Tenant-ID"
)

// TenantResolver requires every request to carry X-Tenant-ID, the
// convention this gateway uses to scope every Store call (spec §3.2's
// "every read of an entity must filter by t").
func TenantResolver() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(tenantHeader)
		if tenantID == "" {
			c.AbortWithStatusJSON(400, gin.H{"error": gin.H{"code": "missing_field", "message": "missing X-Tenant-ID header"}})
			return
		}
		c.Set(CtxTenantID, tenantID)
		c.Next()
	}
}

// RequestID assigns a request id used for log correlation and echoed back
// in error responses.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(CtxRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// AccessLog logs one structured line per request, matching the teacher's
// zerolog access-log convention.
func AccessLog(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("request_id", requestID(c)).
			Msg("http request")
	}
}

func requestID(c *gin.Context) string {
	if v, ok := c.Get(CtxRequestID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// TenantID reads the resolved tenant id set by TenantResolver.
func TenantID(c *gin.Context) string {
	v, _ := c.Get(CtxTenantID)
	s, _ := v.(string)
	return s
}
