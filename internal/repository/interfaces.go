package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/headstart-tech/admissions-api/internal/model"
)

// All repository interfaces in one file
type (
	// PermissionRepository reads feature trees from the document store.
	PermissionRepository interface {
		// FeatureTrees returns the nested trees of every matching document keyed by the
		// stringified src.IDField. An empty id matches all documents.
		FeatureTrees(ctx context.Context, src model.PermissionSource, id, collegeID string) (map[string]model.Tree, error)
	}

	GroupRepository interface {
		ListUserGroupIDs(ctx context.Context, userID string) ([]string, error)
	}

	// AccessRepository resolves which role and college a user acts under.
	AccessRepository interface {
		GetUserAccess(ctx context.Context, userID string) (*model.UserAccess, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, event *model.NotificationEvent) error
		ListRecent(ctx context.Context, sendTo string, limit int64) ([]*model.NotificationEvent, error)
	}

	StudentRepository interface {
		GetStudent(ctx context.Context, id string) (*model.Student, error)
		GetApplication(ctx context.Context, id string) (*model.Application, error)
	}

	FollowupRepository interface {
		FindDue(ctx context.Context, from, to time.Time) ([]*model.Followup, error)
		MarkReminded(ctx context.Context, id primitive.ObjectID) error
	}

	TenantRepository interface {
		GetClientConfiguration(ctx context.Context, universityID string) (*model.ClientConfiguration, error)
	}
)
