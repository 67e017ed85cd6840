package session

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRouter(store Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware(false))
	NewHandler(store, zap.NewNop()).RegisterRoutes(router.Group("/api"))
	return router
}

func do(router *gin.Engine, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie issued", CookieName)
	return nil
}

func TestSessionFlow(t *testing.T) {
	router := setupRouter(NewMemoryStore())

	w := do(router, http.MethodGet, "/api/session", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookie := sessionCookie(t, w)

	w = do(router, http.MethodPost, "/api/session/login", map[string]string{"username": "chen"}, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies(), "existing session is kept")

	w = do(router, http.MethodPut, "/api/session/tab", map[string]string{"tab": "pm"}, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, "/api/session", nil, cookie)
	var st State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.True(t, st.LoggedIn)
	assert.Equal(t, "pm", st.ActiveTab)

	w = do(router, http.MethodPost, "/api/session/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, "/api/session", nil, cookie)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.False(t, st.LoggedIn)
}

func TestLoginRequiresUsername(t *testing.T) {
	router := setupRouter(NewMemoryStore())

	w := do(router, http.MethodPost, "/api/session/login", map[string]string{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMiddlewareReplacesInvalidCookie(t *testing.T) {
	router := setupRouter(NewMemoryStore())

	w := do(router, http.MethodGet, "/api/session", nil, &http.Cookie{Name: CookieName, Value: "not-a-uuid"})
	cookie := sessionCookie(t, w)
	assert.NotEqual(t, "not-a-uuid", cookie.Value)
}
