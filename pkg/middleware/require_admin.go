package middleware

import (
	"net/http"
	"strings"

	"github.com/jordanlanch/couponly/pkg/auth"
	"github.com/labstack/echo/v4"
)

// JWTAuth validates the bearer token and stores the claims on the context.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error":   "unauthorized",
					"message": "Authentication required",
				})
			}

			claims, err := auth.ValidateJWT(strings.TrimPrefix(header, "Bearer "), secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error":   "invalid_token",
					"message": "Invalid or expired token",
				})
			}

			c.Set("account_id", claims.AccountID)
			c.Set("role", claims.Role)
			return next(c)
		}
	}
}

// RequireAdmin ensures the authenticated account has the admin role.
// Apply after JWTAuth.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get("role").(string)
			if !ok || role != "admin" {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error":   "forbidden",
					"message": "Admin access required",
				})
			}
			return next(c)
		}
	}
}
