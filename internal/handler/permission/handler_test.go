package permission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/headstart-tech/admissions-api/internal/middleware"
	"github.com/headstart-tech/admissions-api/internal/model"
	apperrors "github.com/headstart-tech/admissions-api/pkg/errors"
	"github.com/headstart-tech/admissions-api/pkg/logger"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) EffectivePermissions(ctx context.Context, userID, dashboardType string) (*model.EffectivePermissions, error) {
	args := m.Called(ctx, userID, dashboardType)
	perms, _ := args.Get(0).(*model.EffectivePermissions)
	return perms, args.Error(1)
}

func (m *mockService) RoleFeatures(ctx context.Context, roleID string) (model.Tree, error) {
	args := m.Called(ctx, roleID)
	tree, _ := args.Get(0).(model.Tree)
	return tree, args.Error(1)
}

func (m *mockService) RefreshRole(ctx context.Context, roleID string) (model.Tree, error) {
	args := m.Called(ctx, roleID)
	tree, _ := args.Get(0).(model.Tree)
	return tree, args.Error(1)
}

func (m *mockService) RefreshGroup(ctx context.Context, groupID string) (model.Tree, error) {
	args := m.Called(ctx, groupID)
	tree, _ := args.Get(0).(model.Tree)
	return tree, args.Error(1)
}

func (m *mockService) RefreshCollegeScreens(ctx context.Context, collegeID string) (map[string]model.Tree, error) {
	args := m.Called(ctx, collegeID)
	screens, _ := args.Get(0).(map[string]model.Tree)
	return screens, args.Error(1)
}

func (m *mockService) EvictRole(ctx context.Context, roleID string) error {
	return m.Called(ctx, roleID).Error(0)
}

func (m *mockService) EvictCollegeScreens(ctx context.Context, collegeID string) (int, error) {
	args := m.Called(ctx, collegeID)
	return args.Int(0), args.Error(1)
}

// stubAuthorizer denies the listed feature:op pairs and admits everything else.
type stubAuthorizer struct {
	deny map[string]bool
}

func (a stubAuthorizer) RequirePermission(feature, op string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.deny[feature+":"+op] {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		c.Next()
	}
}

func newRouter(svc Service, userID string) *gin.Engine {
	return newGuardedRouter(svc, userID, stubAuthorizer{})
}

func newGuardedRouter(svc Service, userID string, authz stubAuthorizer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.ErrorHandler(logger.Nop()), func(c *gin.Context) {
		if userID != "" {
			c.Set(middleware.ContextUserID, userID)
		}
	})
	NewHandler(svc, authz).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestGetMyPermissions(t *testing.T) {
	svc := &mockService{}
	features := model.Tree{"dashboard": model.Node{model.KeyFeatureID: "dashboard", model.KeyVisibility: true}}
	svc.On("EffectivePermissions", mock.Anything, "user-1", "admin_dashboard").
		Return(&model.EffectivePermissions{UserID: "user-1", RoleID: "r1", Features: features}, nil).Once()

	w := do(newRouter(svc, "user-1"), http.MethodGet, "/api/v1/permissions/me?dashboard_type=admin_dashboard")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status string                     `json:"status"`
		Data   model.EffectivePermissions `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "r1", body.Data.RoleID)
	assert.Equal(t, true, body.Data.Features["dashboard"][model.KeyVisibility])
	svc.AssertExpectations(t)
}

func TestGetMyPermissions_NoCaller(t *testing.T) {
	svc := &mockService{}

	w := do(newRouter(svc, ""), http.MethodGet, "/api/v1/permissions/me")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "EffectivePermissions", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetRoleFeatures_NotFound(t *testing.T) {
	svc := &mockService{}
	svc.On("RoleFeatures", mock.Anything, "missing").Return(nil, apperrors.NotFound("role features", nil)).Once()

	w := do(newRouter(svc, "user-1"), http.MethodGet, "/api/v1/permissions/roles/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefreshAndEvict(t *testing.T) {
	svc := &mockService{}
	tree := model.Tree{"leads": model.Node{model.KeyFeatureID: "leads"}}
	svc.On("RefreshRole", mock.Anything, "r1").Return(tree, nil).Once()
	svc.On("RefreshGroup", mock.Anything, "g1").Return(tree, nil).Once()
	svc.On("RefreshCollegeScreens", mock.Anything, "c1").Return(map[string]model.Tree{"admin_dashboard": tree}, nil).Once()
	svc.On("EvictRole", mock.Anything, "r1").Return(nil).Once()
	svc.On("EvictCollegeScreens", mock.Anything, "c1").Return(3, nil).Once()
	r := newRouter(svc, "user-1")

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/permissions/roles/r1/refresh").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/permissions/groups/g1/refresh").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/v1/permissions/colleges/c1/screens/refresh").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/api/v1/permissions/roles/r1/cache").Code)

	w := do(r, http.MethodDelete, "/api/v1/permissions/colleges/c1/screens/cache")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","data":{"evicted":3}}`, w.Body.String())
	svc.AssertExpectations(t)
}

func TestAdminRoutesRequirePermission(t *testing.T) {
	svc := &mockService{}
	svc.On("EffectivePermissions", mock.Anything, "user-1", "").
		Return(&model.EffectivePermissions{UserID: "user-1"}, nil).Once()
	r := newGuardedRouter(svc, "user-1", stubAuthorizer{deny: map[string]bool{
		model.FeatureUserPermissions + ":" + model.OpRead:  true,
		model.FeatureRoleManagement + ":" + model.OpRead:   true,
		model.FeatureRoleManagement + ":" + model.OpEdit:   true,
		model.FeatureRoleManagement + ":" + model.OpDelete: true,
	}})

	guarded := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/permissions/users/user-2"},
		{http.MethodGet, "/api/v1/permissions/roles/r1"},
		{http.MethodPost, "/api/v1/permissions/roles/r1/refresh"},
		{http.MethodDelete, "/api/v1/permissions/roles/r1/cache"},
		{http.MethodPost, "/api/v1/permissions/groups/g1/refresh"},
		{http.MethodPost, "/api/v1/permissions/colleges/c1/screens/refresh"},
		{http.MethodDelete, "/api/v1/permissions/colleges/c1/screens/cache"},
	}
	for _, rt := range guarded {
		assert.Equal(t, http.StatusForbidden, do(r, rt.method, rt.path).Code, rt.method+" "+rt.path)
	}

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/permissions/me").Code)
	svc.AssertExpectations(t)
}
