package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"osian_backend/internal/model"
	"osian_backend/internal/util"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func token(t *testing.T, role model.UserRole) string {
	user := &model.User{Email: "a@b.test", Role: role}
	user.ID = 7
	tok, err := util.GenerateJWT(user, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	auth := r.Group("/", AuthMiddleware(testSecret))
	auth.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": util.GetUserFromContext(c).UserID})
	})
	auth.GET("/admin", RoleMiddleware(model.Admin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func do(r http.Handler, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter()

	require.Equal(t, http.StatusUnauthorized, do(r, "/me", "").Code)
	require.Equal(t, http.StatusUnauthorized, do(r, "/me", "garbage").Code)

	w := do(r, "/me", token(t, model.Student))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"id":7}`, w.Body.String())

	// query 参数传 token
	w = do(r, "/me?token="+token(t, model.Student), "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddlewareRejectsOtherSecret(t *testing.T) {
	user := &model.User{Role: model.Student}
	tok, err := util.GenerateJWT(user, "another-secret-another-secret-xx", time.Hour)
	require.NoError(t, err)

	require.Equal(t, http.StatusUnauthorized, do(newRouter(), "/me", tok).Code)
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter()

	require.Equal(t, http.StatusForbidden, do(r, "/admin", token(t, model.Student)).Code)
	require.Equal(t, http.StatusOK, do(r, "/admin", token(t, model.Admin)).Code)
}

func TestRecoveryReturnsJSON(t *testing.T) {
	w := do(newRouter(), "/panic", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp util.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "Internal server error", resp.Message)
}
