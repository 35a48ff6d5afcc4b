package handler

import "github.com/gin-gonic/gin"

// Authorizer is satisfied by *middleware.AuthMiddleware.
type Authorizer interface {
	RequirePermission(feature, op string) gin.HandlerFunc
}
