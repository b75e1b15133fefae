package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"payment_gateway/internal/domain"
	"payment_gateway/internal/testutil"
	"payment_gateway/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const secret = "test-secret"

func newRouter(gdb *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	authed := r.Group("/", JWTAuthMiddleware(gdb, secret))
	authed.GET("/me", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		u, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"user_id": p.UserID, "admin": p.Admin, "username": u.Username})
	})
	authed.GET("/admin", AdminOnlyMiddleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func do(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, u domain.User) string {
	t.Helper()
	tok, err := utils.GenerateJWT(u.ID, u.Role, secret)
	require.NoError(t, err)
	return tok
}

func TestJWTAuthMiddleware(t *testing.T) {
	gdb := testutil.NewDB(t)
	r := newRouter(gdb)
	user := testutil.CreateUser(t, gdb, "frank", domain.RoleUser)

	w := do(r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"auth"`)

	w = do(r, "/me", "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	forged, err := utils.GenerateJWT(user.ID, user.Role, "other-secret")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", forged).Code)

	w = do(r, "/me", token(t, user))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":1,"admin":false,"username":"frank"}`, w.Body.String())
}

func TestJWTAuthMiddlewareRejectsDeactivatedUser(t *testing.T) {
	gdb := testutil.NewDB(t)
	r := newRouter(gdb)
	user := testutil.CreateUser(t, gdb, "gina", domain.RoleUser)
	tok := token(t, user)

	require.NoError(t, gdb.Model(&user).Update("is_active", false).Error)
	w := do(r, "/me", tok)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "deactivated")
}

func TestAdminOnlyMiddleware(t *testing.T) {
	gdb := testutil.NewDB(t)
	r := newRouter(gdb)
	user := testutil.CreateUser(t, gdb, "hank", domain.RoleUser)
	admin := testutil.CreateUser(t, gdb, "iris", domain.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, do(r, "/admin", token(t, user)).Code)
	assert.Equal(t, http.StatusNoContent, do(r, "/admin", token(t, admin)).Code)

	// A role claim in the token is not trusted; the database role is
	forged, err := utils.GenerateJWT(user.ID, domain.RoleAdmin, secret)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(r, "/admin", forged).Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := newRouter(testutil.NewDB(t))

	w := do(r, "/me", "")
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(RequestIDHeader, id)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(RequestIDHeader, "../../etc/passwd")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "../../etc/passwd", w.Header().Get(RequestIDHeader))
}
