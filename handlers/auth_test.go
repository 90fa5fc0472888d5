package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatescan/auth"
)

func newAuthRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	authed := router.Group("", AuthRequired(secret))
	authed.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"operator_id": c.GetInt64(ctxOperatorID),
			"username":    c.GetString(ctxUsername),
			"role":        c.GetString(ctxRole),
		})
	})

	admin := authed.Group("", AdminRequired())
	admin.GET("/admin-only", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	return router
}

func get(router *gin.Engine, target, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, r)
	return w
}

func TestAuthRequired(t *testing.T) {
	const secret = "test-secret"
	router := newAuthRouter(secret)

	token, err := auth.GenerateToken(secret, 7, "gate1", "operator")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(router, "/whoami", token).Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/whoami", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/whoami", "garbage").Code)

	wrong, err := auth.GenerateToken("other-secret", 7, "gate1", "operator")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/whoami", wrong).Code)
}

func TestAdminRequired(t *testing.T) {
	const secret = "test-secret"
	router := newAuthRouter(secret)

	operator, err := auth.GenerateToken(secret, 7, "gate1", "operator")
	require.NoError(t, err)
	admin, err := auth.GenerateToken(secret, 1, "boss", "admin")
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, get(router, "/admin-only", operator).Code)
	assert.Equal(t, http.StatusOK, get(router, "/admin-only", admin).Code)
}
