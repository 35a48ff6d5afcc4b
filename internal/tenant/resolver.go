package tenant

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/headstart-tech/admissions-api/internal/repository"
	apperrors "github.com/headstart-tech/admissions-api/pkg/errors"
	"github.com/headstart-tech/admissions-api/pkg/logger"
)

// Resolver loads tenant settings from the master client configurations and keeps them
// in memory for ttl.
type Resolver struct {
	repo   repository.TenantRepository
	awsEnv string
	cache  *gocache.Cache
	logger *logger.Logger
}

// NewResolver uses awsEnv for tenants whose configuration does not name one.
func NewResolver(repo repository.TenantRepository, awsEnv string, ttl time.Duration, log *logger.Logger) *Resolver {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Resolver{
		repo:   repo,
		awsEnv: awsEnv,
		cache:  gocache.New(ttl, 2*ttl),
		logger: log,
	}
}

func (r *Resolver) Resolve(ctx context.Context, universityID string) (Settings, error) {
	if v, ok := r.cache.Get(universityID); ok {
		return v.(Settings), nil
	}
	return r.load(ctx, universityID)
}

// Refresh drops the cached settings and reloads them.
func (r *Resolver) Refresh(ctx context.Context, universityID string) (Settings, error) {
	r.cache.Delete(universityID)
	return r.load(ctx, universityID)
}

func (r *Resolver) load(ctx context.Context, universityID string) (Settings, error) {
	if universityID == "" {
		return Settings{}, apperrors.BadRequest("university id is required", nil)
	}

	cfg, err := r.repo.GetClientConfiguration(ctx, universityID)
	if err != nil {
		return Settings{}, err
	}
	if !cfg.Active {
		return Settings{}, apperrors.Forbidden(fmt.Sprintf("university %s is not active", universityID))
	}

	s := Settings{
		AWSEnv:         cfg.AWSEnv,
		UniversityID:   cfg.UniversityID,
		UniversityName: cfg.UniversityName,
	}
	if s.AWSEnv == "" {
		s.AWSEnv = r.awsEnv
	}

	r.cache.Set(universityID, s, gocache.DefaultExpiration)
	r.logger.Debug("tenant settings loaded", "university_id", universityID, "folder", s.Folder())
	return s, nil
}
