package tenant

import (
	"context"
	"errors"

	"github.com/headstart-tech/admissions-api/internal/cache"
)

var ErrNoTenant = errors.New("no tenant settings in context")

// Settings identify a tenant. Values are immutable; a refresh builds new Settings.
type Settings struct {
	AWSEnv         string `json:"aws_env"`
	UniversityID   string `json:"university_id"`
	UniversityName string `json:"university_name"`
}

func (s Settings) Folder() string {
	return cache.FolderName(s.UniversityName)
}

func (s Settings) Keyspace() cache.Keyspace {
	return cache.Keyspace{Env: s.AWSEnv, Folder: s.Folder()}
}

type contextKey struct{}

func WithSettings(ctx context.Context, s Settings) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Settings, error) {
	s, ok := ctx.Value(contextKey{}).(Settings)
	if !ok {
		return Settings{}, ErrNoTenant
	}
	return s, nil
}
