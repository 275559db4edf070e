package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the header name for request ID
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the context key for request ID
	RequestIDKey = "request_id"

	// UserIDHeader identifies the submitting user. It is trusted as-is;
	// authentication happens in front of this service.
	UserIDHeader = "X-User-ID"
	// UserIDKey is the context key for the user ID
	UserIDKey = "user_id"
)

// RequestID middleware adds a unique request ID to each request.
// If the client provides an X-Request-ID header, it is used; otherwise, a new UUID is generated.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// Set the request ID in the context
		c.Set(RequestIDKey, requestID)

		// Set the request ID in the response header
		c.Header(RequestIDHeader, requestID)

		if userID := c.GetHeader(UserIDHeader); userID != "" {
			c.Set(UserIDKey, userID)
		}

		c.Next()
	}
}

// GetRequestID retrieves the request ID from the gin context.
func GetRequestID(c *gin.Context) string {
	return getString(c, RequestIDKey)
}

// GetUserID retrieves the caller's user ID from the gin context.
func GetUserID(c *gin.Context) string {
	return getString(c, UserIDKey)
}

func getString(c *gin.Context, key string) string {
	if v, exists := c.Get(key); exists {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
