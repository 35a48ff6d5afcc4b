package permission

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/headstart-tech/admissions-api/internal/handler"
	"github.com/headstart-tech/admissions-api/internal/middleware"
	"github.com/headstart-tech/admissions-api/internal/model"
	apperrors "github.com/headstart-tech/admissions-api/pkg/errors"
)

// Service is implemented by *permission.Service.
type Service interface {
	EffectivePermissions(ctx context.Context, userID, dashboardType string) (*model.EffectivePermissions, error)
	RoleFeatures(ctx context.Context, roleID string) (model.Tree, error)
	RefreshRole(ctx context.Context, roleID string) (model.Tree, error)
	RefreshGroup(ctx context.Context, groupID string) (model.Tree, error)
	RefreshCollegeScreens(ctx context.Context, collegeID string) (map[string]model.Tree, error)
	EvictRole(ctx context.Context, roleID string) error
	EvictCollegeScreens(ctx context.Context, collegeID string) (int, error)
}

type Handler struct {
	service Service
	authz   handler.Authorizer
}

func NewHandler(service Service, authz handler.Authorizer) *Handler {
	return &Handler{service: service, authz: authz}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	read := h.authz.RequirePermission(model.FeatureRoleManagement, model.OpRead)
	edit := h.authz.RequirePermission(model.FeatureRoleManagement, model.OpEdit)
	remove := h.authz.RequirePermission(model.FeatureRoleManagement, model.OpDelete)

	perms := r.Group("/permissions")
	{
		perms.GET("/me", h.GetMyPermissions)
		perms.GET("/users/:user_id", h.authz.RequirePermission(model.FeatureUserPermissions, model.OpRead), h.GetUserPermissions)
		perms.GET("/roles/:role_id", read, h.GetRoleFeatures)
		perms.POST("/roles/:role_id/refresh", edit, h.RefreshRole)
		perms.DELETE("/roles/:role_id/cache", remove, h.EvictRole)
		perms.POST("/groups/:group_id/refresh", edit, h.RefreshGroup)
		perms.POST("/colleges/:college_id/screens/refresh", edit, h.RefreshCollegeScreens)
		perms.DELETE("/colleges/:college_id/screens/cache", remove, h.EvictCollegeScreens)
	}
}

// GetMyPermissions returns the caller's effective permissions for ?dashboard_type.
func (h *Handler) GetMyPermissions(c *gin.Context) {
	h.effective(c, c.GetString(middleware.ContextUserID))
}

func (h *Handler) GetUserPermissions(c *gin.Context) {
	h.effective(c, c.Param("user_id"))
}

func (h *Handler) effective(c *gin.Context, userID string) {
	if userID == "" {
		handler.Fail(c, apperrors.BadRequest("user id is required", nil))
		return
	}

	perms, err := h.service.EffectivePermissions(c.Request.Context(), userID, c.Query("dashboard_type"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, perms)
}

func (h *Handler) GetRoleFeatures(c *gin.Context) {
	tree, err := h.service.RoleFeatures(c.Request.Context(), c.Param("role_id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, tree)
}

func (h *Handler) RefreshRole(c *gin.Context) {
	tree, err := h.service.RefreshRole(c.Request.Context(), c.Param("role_id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, tree)
}

func (h *Handler) EvictRole(c *gin.Context) {
	if err := h.service.EvictRole(c.Request.Context(), c.Param("role_id")); err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, gin.H{"evicted": 1})
}

func (h *Handler) RefreshGroup(c *gin.Context) {
	tree, err := h.service.RefreshGroup(c.Request.Context(), c.Param("group_id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, tree)
}

func (h *Handler) RefreshCollegeScreens(c *gin.Context) {
	screens, err := h.service.RefreshCollegeScreens(c.Request.Context(), c.Param("college_id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, screens)
}

func (h *Handler) EvictCollegeScreens(c *gin.Context) {
	n, err := h.service.EvictCollegeScreens(c.Request.Context(), c.Param("college_id"))
	if err != nil {
		handler.Fail(c, err)
		return
	}
	handler.OK(c, gin.H{"evicted": n})
}
