package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "jwt-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func authRouter(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/", mw, func(c *gin.Context) {
		id, ok := CustomerID(c)
		c.JSON(http.StatusOK, gin.H{"customer_id": id.String(), "authenticated": ok})
	})
	return r
}

func TestRequireCustomer(t *testing.T) {
	a := NewAuthenticator(testSecret)
	customerID := uuid.New()

	tests := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"no token", func(*http.Request) {}, http.StatusUnauthorized},
		{"bearer token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, Claims{CustomerID: customerID.String()}))
		}, http.StatusOK},
		{"cookie token", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: TokenCookie, Value: signToken(t, testSecret, Claims{CustomerID: customerID.String()})})
		}, http.StatusOK},
		{"wrong secret", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, "other", Claims{CustomerID: customerID.String()}))
		}, http.StatusUnauthorized},
		{"expired", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, Claims{
				CustomerID:       customerID.String(),
				RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
			}))
		}, http.StatusUnauthorized},
		{"token without customer", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, Claims{Role: RoleAdmin}))
		}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			authRouter(a.RequireCustomer()).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Contains(t, w.Body.String(), customerID.String())
			}
		})
	}
}

func TestOptionalCustomer_GuestPassesThrough(t *testing.T) {
	a := NewAuthenticator(testSecret)

	w := httptest.NewRecorder()
	authRouter(a.OptionalCustomer()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":false`)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	authRouter(a.OptionalCustomer()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, "bad tokens degrade to guest")
}

func TestRequireAdmin(t *testing.T) {
	a := NewAuthenticator(testSecret)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, Claims{CustomerID: uuid.NewString()}))
	w := httptest.NewRecorder()
	authRouter(a.RequireAdmin()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, Claims{Role: RoleAdmin}))
	w = httptest.NewRecorder()
	authRouter(a.RequireAdmin()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRejectsNonHMACTokens(t *testing.T) {
	a := NewAuthenticator(testSecret)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{CustomerID: uuid.NewString()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+unsigned)
	w := httptest.NewRecorder()
	authRouter(a.RequireCustomer()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
