package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	CustomerIDKey = "customer_id"
	RoleKey       = "role"

	RoleAdmin = "admin"

	// TokenCookie carries the storefront session token for browser requests.
	TokenCookie = "customer_token"
)

// Claims is the token payload issued by the storefront's auth service.
type Claims struct {
	CustomerID string `json:"customer_id,omitempty"`
	Role       string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) parse(c *gin.Context) (*Claims, error) {
	tokenString := ""
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		tokenString = strings.TrimPrefix(h, "Bearer ")
	} else if cookie, err := c.Cookie(TokenCookie); err == nil {
		tokenString = cookie
	}
	if tokenString == "" {
		return nil, errors.New("token is required")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	return claims, nil
}

func (a *Authenticator) bind(c *gin.Context, claims *Claims) {
	if id, err := uuid.Parse(claims.CustomerID); err == nil {
		c.Set(CustomerIDKey, id)
	}
	c.Set(RoleKey, claims.Role)
}

// OptionalCustomer attaches the caller's customer id when a valid token is
// present. Guest checkout carries no token and passes through.
func (a *Authenticator) OptionalCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := a.parse(c); err == nil {
			a.bind(c, claims)
		}
		c.Next()
	}
}

// RequireCustomer rejects requests without a valid customer token.
func (a *Authenticator) RequireCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.parse(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		a.bind(c, claims)
		if _, ok := CustomerID(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token has no customer"})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects requests whose token lacks the admin role.
func (a *Authenticator) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.parse(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		if claims.Role != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		a.bind(c, claims)
		c.Next()
	}
}

// CustomerID returns the authenticated customer, if any.
func CustomerID(c *gin.Context) (uuid.UUID, bool) {
	if val, ok := c.Get(CustomerIDKey); ok {
		if id, ok := val.(uuid.UUID); ok && id != uuid.Nil {
			return id, true
		}
	}
	return uuid.Nil, false
}
