package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"eam/internal/health"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) Check(ctx context.Context) (health.Payload, error) {
	args := m.Called(ctx)
	return args.Get(0).(health.Payload), args.Error(1)
}

func setupGate(checker health.Checker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(MaintenanceGate(checker, time.Second, nil, zap.NewNop()))
	ok := func(c *gin.Context) { c.String(http.StatusOK, "page") }
	router.GET("/pm", ok)
	router.GET("/maintenance", ok)
	router.GET("/api/health", ok)
	router.GET("/admin", ok)
	router.GET("/logout", ok)
	return router
}

func TestMaintenanceGate(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		cookie         *http.Cookie
		setupMock      func(m *MockChecker)
		expectedStatus int
	}{
		{
			name: "healthy backend serves page",
			path: "/pm",
			setupMock: func(m *MockChecker) {
				m.On("Check", mock.Anything).Return(health.Payload{Status: health.StatusOK}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "error status redirects",
			path: "/pm",
			setupMock: func(m *MockChecker) {
				m.On("Check", mock.Anything).Return(health.Payload{Status: health.StatusError}, nil)
			},
			expectedStatus: http.StatusTemporaryRedirect,
		},
		{
			name: "maintenance status redirects",
			path: "/pm",
			setupMock: func(m *MockChecker) {
				m.On("Check", mock.Anything).Return(health.Payload{Status: health.StatusMaintenance}, nil)
			},
			expectedStatus: http.StatusTemporaryRedirect,
		},
		{
			name: "failed check redirects",
			path: "/pm",
			setupMock: func(m *MockChecker) {
				m.On("Check", mock.Anything).Return(health.Payload{}, errors.New("connection refused"))
			},
			expectedStatus: http.StatusTemporaryRedirect,
		},
		{
			name:           "override cookie bypasses check",
			path:           "/pm",
			cookie:         &http.Cookie{Name: MaintenanceCookie, Value: "true"},
			setupMock:      func(m *MockChecker) {},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "override cookie must be true",
			path:   "/pm",
			cookie: &http.Cookie{Name: MaintenanceCookie, Value: "yes"},
			setupMock: func(m *MockChecker) {
				m.On("Check", mock.Anything).Return(health.Payload{Status: health.StatusError}, nil)
			},
			expectedStatus: http.StatusTemporaryRedirect,
		},
		{"maintenance page excluded", "/maintenance", nil, func(m *MockChecker) {}, http.StatusOK},
		{"api excluded", "/api/health", nil, func(m *MockChecker) {}, http.StatusOK},
		{"admin excluded", "/admin", nil, func(m *MockChecker) {}, http.StatusOK},
		{"logout excluded", "/logout", nil, func(m *MockChecker) {}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := new(MockChecker)
			tt.setupMock(checker)
			router := setupGate(checker)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusTemporaryRedirect {
				assert.Equal(t, MaintenancePath, w.Header().Get("Location"))
			}
			checker.AssertExpectations(t)
		})
	}
}

func TestMaintenanceGateWithHealthStore(t *testing.T) {
	store := health.NewStore("dev", 0)
	router := setupGate(health.NewStoreChecker(store))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/pm", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	_, _ = store.Set(health.Update{Status: "error"})

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
}
