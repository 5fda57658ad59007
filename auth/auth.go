package auth

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"

	"chatfm/config"
)

const (
	ctxUserID    = "userID"
	ctxFirstName = "userFirstName"
	ctxLastName  = "userLastName"
)

// Middleware extracts the caller's identity from a bearer token. Identity
// is optional: requests without an Authorization header proceed as
// anonymous, since public channels and guest messaging allow them. A
// present but invalid token is rejected.
//
// Unless OpenAccess is configured, tokens additionally need a truthy
// `chat` claim to use the module at all.
func Middleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			c.Next()
			return
		}
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(401, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(401, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		if !cfg.OpenAccess {
			if allowed, _ := claims["chat"].(bool); !allowed {
				c.JSON(403, gin.H{"error": "Chat access not granted"})
				c.Abort()
				return
			}
		}

		if sub, _ := claims["sub"].(string); sub != "" {
			c.Set(ctxUserID, sub)
		}
		if first, _ := claims["first_name"].(string); first != "" {
			c.Set(ctxFirstName, first)
		}
		if last, _ := claims["last_name"].(string); last != "" {
			c.Set(ctxLastName, last)
		}

		c.Next()
	}
}

// RequireUser aborts anonymous requests.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			c.JSON(401, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated caller's id, or "" for anonymous.
func UserID(c *gin.Context) string {
	id, _ := c.Value(ctxUserID).(string)
	return id
}

// Token builds a signed token for the given user. Exposed for tests and
// for host applications embedding the module.
func Token(cfg *config.Config, userID, firstName, lastName string, chatAccess bool) (string, error) {
	claims := jwt.MapClaims{
		"sub":        userID,
		"first_name": firstName,
		"last_name":  lastName,
		"chat":       chatAccess,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}
