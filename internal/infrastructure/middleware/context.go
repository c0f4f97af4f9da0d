package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"selfiebooth/internal/core/domain"
	"selfiebooth/pkg/i18n"
	"selfiebooth/pkg/logger"
	"selfiebooth/pkg/utils"
)

// Gin context keys set by the middleware of this package.
const (
	KeyRequestID = "request_id"
	KeyClientID  = "client_id"
	KeyTenant    = "tenant"
	KeySession   = "auth_session"
	KeyLanguage  = "language"
)

const RequestIDHeader = "X-Request-ID"

// RequestContextMiddleware assigns a request id and picks the response
// language from ?lang= or Accept-Language.
func RequestContextMiddleware(catalog *i18n.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = utils.GenerateRequestID()
		}
		c.Set(KeyRequestID, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))

		c.Set(KeyLanguage, catalog.FromRequest(c.Request))
		c.Next()
	}
}

// HTTPRecorder observes finished requests.
type HTTPRecorder interface {
	RecordHTTPRequest(method, route string, status int, d time.Duration)
}

// MetricsMiddleware times every request by its route template.
func MetricsMiddleware(recorder HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		recorder.RecordHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// Language returns the negotiated language, German when none was set.
func Language(c *gin.Context) language.Tag {
	if v, ok := c.Get(KeyLanguage); ok {
		if tag, ok := v.(language.Tag); ok {
			return tag
		}
	}
	return language.German
}

// ClientID returns the booth client id set by ClientMiddleware.
func ClientID(c *gin.Context) string {
	return c.GetString(KeyClientID)
}

// Tenant returns the tenant set by TenantMiddleware, or nil.
func Tenant(c *gin.Context) *domain.Tenant {
	if v, ok := c.Get(KeyTenant); ok {
		if t, ok := v.(*domain.Tenant); ok {
			return t
		}
	}
	return nil
}
