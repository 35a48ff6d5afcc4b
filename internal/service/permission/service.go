package permission

import (
	"context"

	"github.com/headstart-tech/admissions-api/internal/model"
	"github.com/headstart-tech/admissions-api/internal/repository"
	apperrors "github.com/headstart-tech/admissions-api/pkg/errors"
	"github.com/headstart-tech/admissions-api/pkg/logger"
)

// TreeSource is implemented by Populator.
type TreeSource interface {
	Entity(ctx context.Context, src model.PermissionSource, id, collegeID string, force bool) (model.Tree, error)
	All(ctx context.Context, src model.PermissionSource, collegeID string, force bool) (map[string]model.Tree, error)
	Evict(ctx context.Context, src model.PermissionSource, id, collegeID string) error
	EvictAll(ctx context.Context, src model.PermissionSource, collegeID string) (int, error)
}

type Service struct {
	trees  TreeSource
	access repository.AccessRepository
	groups repository.GroupRepository
	logger *logger.Logger
}

func NewService(trees TreeSource, access repository.AccessRepository, groups repository.GroupRepository, log *logger.Logger) *Service {
	return &Service{
		trees:  trees,
		access: access,
		groups: groups,
		logger: log,
	}
}

// EffectivePermissions composes the user's role tree with its group trees and, when
// the user belongs to a college, that college's screen for dashboardType. A role
// without features is an error: an empty result must never stand in for a denial.
func (s *Service) EffectivePermissions(ctx context.Context, userID, dashboardType string) (*model.EffectivePermissions, error) {
	access, err := s.access.GetUserAccess(ctx, userID)
	if err != nil {
		return nil, err
	}

	base, err := s.RoleFeatures(ctx, access.RoleID)
	if err != nil {
		return nil, err
	}

	groupIDs, err := s.groups.ListUserGroupIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	groupTrees := make([]model.Tree, 0, len(groupIDs))
	for _, id := range groupIDs {
		tree, err := s.trees.Entity(ctx, model.GroupFeatures, id, "", false)
		if err != nil {
			return nil, err
		}
		if tree == nil {
			s.logger.Debug("group has no permissions, skipping", "group_id", id, "user_id", userID)
			continue
		}
		groupTrees = append(groupTrees, tree)
	}

	var college model.Tree
	if access.College() != "" && dashboardType != "" {
		college, err = s.trees.Entity(ctx, model.CollegeScreens, dashboardType, access.College(), false)
		if err != nil {
			return nil, err
		}
	}

	return &model.EffectivePermissions{
		UserID:        userID,
		RoleID:        access.RoleID,
		CollegeID:     access.College(),
		DashboardType: dashboardType,
		GroupIDs:      groupIDs,
		Features:      Compose(base, groupTrees, college),
	}, nil
}

func (s *Service) RoleFeatures(ctx context.Context, roleID string) (model.Tree, error) {
	tree, err := s.trees.Entity(ctx, model.RoleFeatures, roleID, "", false)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, apperrors.NotFound("role features", nil)
	}
	return tree, nil
}

// RefreshRole re-caches a role after an edit, overwriting any cached copy.
func (s *Service) RefreshRole(ctx context.Context, roleID string) (model.Tree, error) {
	tree, err := s.trees.Entity(ctx, model.RoleFeatures, roleID, "", true)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, apperrors.NotFound("role features", nil)
	}
	return tree, nil
}

func (s *Service) RefreshGroup(ctx context.Context, groupID string) (model.Tree, error) {
	tree, err := s.trees.Entity(ctx, model.GroupFeatures, groupID, "", true)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, apperrors.NotFound("group permissions", nil)
	}
	return tree, nil
}

// RefreshCollegeScreens re-caches every dashboard screen of a college.
func (s *Service) RefreshCollegeScreens(ctx context.Context, collegeID string) (map[string]model.Tree, error) {
	return s.trees.All(ctx, model.CollegeScreens, collegeID, true)
}

func (s *Service) EvictRole(ctx context.Context, roleID string) error {
	return s.trees.Evict(ctx, model.RoleFeatures, roleID, "")
}

func (s *Service) EvictCollegeScreens(ctx context.Context, collegeID string) (int, error) {
	return s.trees.EvictAll(ctx, model.CollegeScreens, collegeID)
}
