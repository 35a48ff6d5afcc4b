package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headstart-tech/admissions-api/internal/model"
	apperrors "github.com/headstart-tech/admissions-api/pkg/errors"
	"github.com/headstart-tech/admissions-api/pkg/logger"
)

type fakeAccessRepo struct {
	access map[string]*model.UserAccess
}

func (f *fakeAccessRepo) GetUserAccess(_ context.Context, userID string) (*model.UserAccess, error) {
	a, ok := f.access[userID]
	if !ok {
		return nil, apperrors.NotFound("user", nil)
	}
	return a, nil
}

type fakeGroupRepo struct {
	groups map[string][]string
	err    error
}

func (f *fakeGroupRepo) ListUserGroupIDs(_ context.Context, userID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.groups[userID], nil
}

func strPtr(s string) *string { return &s }

type serviceFixture struct {
	svc    *Service
	repo   *fakePermissionRepo
	access *fakeAccessRepo
	groups *fakeGroupRepo
}

func setupService(t *testing.T) *serviceFixture {
	t.Helper()
	f := setupPopulator(t)
	access := &fakeAccessRepo{access: map[string]*model.UserAccess{
		"user-1": {UserID: "user-1", RoleID: roleID},
		"user-2": {UserID: "user-2", RoleID: roleID, CollegeID: strPtr("c1")},
		"user-3": {UserID: "user-3", RoleID: "no-such-role"},
	}}
	groups := &fakeGroupRepo{groups: map[string][]string{}}
	return &serviceFixture{
		svc:    NewService(f.populator, access, groups, logger.Nop()),
		repo:   f.repo,
		access: access,
		groups: groups,
	}
}

func TestEffectivePermissions_ScenarioA(t *testing.T) {
	f := setupService(t)
	f.repo.put(model.RoleFeatures, "", roleID, dashboardBase())
	f.repo.put(model.GroupFeatures, "", "g1", model.Tree{
		"dashboard": {"feature_id": "dashboard", "permissions": map[string]interface{}{"write": true}},
	})
	f.groups.groups["user-1"] = []string{"g1", "g-missing"}

	eff, err := f.svc.EffectivePermissions(tenantContext(), "user-1", "")
	require.NoError(t, err)

	dashboard := eff.Features["dashboard"]
	assert.Equal(t, true, dashboard["visibility"])
	assert.Equal(t, map[string]interface{}{"read": true, "write": true}, dashboard["permissions"])
	assert.Equal(t, []string{"g1", "g-missing"}, eff.GroupIDs)
}

func TestEffectivePermissions_ScenarioB(t *testing.T) {
	f := setupService(t)
	f.repo.put(model.RoleFeatures, "", roleID, dashboardBase())
	f.repo.put(model.CollegeScreens, "c1", "admin_dashboard", model.Tree{})

	eff, err := f.svc.EffectivePermissions(tenantContext(), "user-2", "admin_dashboard")
	require.NoError(t, err)
	assert.Equal(t, false, eff.Features["dashboard"]["visibility"])
	assert.Equal(t, "c1", eff.CollegeID)
}

func TestEffectivePermissions_NoCollegeScreen(t *testing.T) {
	f := setupService(t)
	f.repo.put(model.RoleFeatures, "", roleID, dashboardBase())

	eff, err := f.svc.EffectivePermissions(tenantContext(), "user-2", "counselor_dashboard")
	require.NoError(t, err)
	assert.Equal(t, true, eff.Features["dashboard"]["visibility"])
}

func TestEffectivePermissions_DoesNotMutateCachedRole(t *testing.T) {
	f := setupService(t)
	f.repo.put(model.RoleFeatures, "", roleID, dashboardBase())
	f.repo.put(model.CollegeScreens, "c1", "admin_dashboard", model.Tree{})
	ctx := tenantContext()

	_, err := f.svc.EffectivePermissions(ctx, "user-2", "admin_dashboard")
	require.NoError(t, err)

	role, err := f.svc.RoleFeatures(ctx, roleID)
	require.NoError(t, err)
	assert.Equal(t, true, role["dashboard"]["visibility"])
}

func TestEffectivePermissions_FailsClosed(t *testing.T) {
	f := setupService(t)

	_, err := f.svc.EffectivePermissions(tenantContext(), "user-3", "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	_, err = f.svc.EffectivePermissions(tenantContext(), "nobody", "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestEffectivePermissions_GroupLookupError(t *testing.T) {
	f := setupService(t)
	f.repo.put(model.RoleFeatures, "", roleID, dashboardBase())
	f.groups.err = errors.New("mongo down")

	_, err := f.svc.EffectivePermissions(tenantContext(), "user-1", "")
	assert.ErrorContains(t, err, "mongo down")
}

func TestRefreshAndEvict(t *testing.T) {
	f := setupService(t)
	ctx := tenantContext()

	_, err := f.svc.RefreshRole(ctx, roleID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	f.repo.put(model.RoleFeatures, "", roleID, dashboardBase())
	tree, err := f.svc.RefreshRole(ctx, roleID)
	require.NoError(t, err)
	assert.Contains(t, tree, "dashboard")

	require.NoError(t, f.svc.EvictRole(ctx, roleID))

	f.repo.put(model.GroupFeatures, "", "g1", dashboardBase())
	_, err = f.svc.RefreshGroup(ctx, "g1")
	require.NoError(t, err)

	f.repo.put(model.CollegeScreens, "c1", "admin_dashboard", dashboardBase())
	screens, err := f.svc.RefreshCollegeScreens(ctx, "c1")
	require.NoError(t, err)
	assert.Contains(t, screens, "admin_dashboard")

	n, err := f.svc.EvictCollegeScreens(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
