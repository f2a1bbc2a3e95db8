// Package middleware provides HTTP middleware for the Gin router.
//
// Go Learning Note — Middleware Pattern (Gin):
// In Gin, middleware is any function with the signature `gin.HandlerFunc`, which
// is `func(*gin.Context)`. Middleware functions form a chain: each one runs,
// optionally calls c.Next() to pass control to the next handler, and can call
// c.Abort() to stop the chain. This is the "chain of responsibility" pattern.
//
// Middleware is applied using .Use() on a router or route group. Common uses:
// authentication, logging, CORS headers, rate limiting, and request tracing.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ClientIDKey is the context key the authenticated client id is stored under.
//
// Go Learning Note — Context Values:
// Gin's c.Set/c.Get stores request-scoped values in the *gin.Context. This is
// similar to the standard library's context.WithValue(). Use named constants
// (not raw strings) as keys to avoid typos and enable refactoring.
const ClientIDKey = "client_id"

// ClientAuth extracts the client identity from the X-Client-ID header.
//
// This is a simplified scheme: the engine trusts the embedding app to assert
// who it is. In production you'd validate a real token (e.g. a JWT via
// "github.com/golang-jwt/jwt/v5") issued to the app installation, but the
// visibility engine itself has no user-level data worth protecting — the
// header mainly scopes sessions to their owner.
//
// Go Learning Note — c.Abort():
// c.Abort() prevents subsequent handlers in the chain from running. Without it,
// even after writing an error response, the next handler would still execute.
// Always pair error responses with c.Abort() in middleware.
func ClientAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetHeader("X-Client-ID")
		if clientID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing X-Client-ID header"})
			c.Abort()
			return
		}

		c.Set(ClientIDKey, clientID)
		c.Next()
	}
}

// GetClientID retrieves the client id previously set by ClientAuth.
func GetClientID(c *gin.Context) string {
	clientID, _ := c.Get(ClientIDKey)
	id, _ := clientID.(string)
	return id
}

// RequireSessionOwner ensures the caller's client id matches the session
// owner resolved by the handler. Ownership is checked in the handler because
// it needs the session repository; this helper just compares.
func RequireSessionOwner(c *gin.Context, ownerID string) bool {
	if GetClientID(c) != ownerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "session belongs to another client"})
		c.Abort()
		return false
	}
	return true
}
