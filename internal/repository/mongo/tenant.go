package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/headstart-tech/admissions-api/internal/model"
	"github.com/headstart-tech/admissions-api/internal/repository"
	apperrors "github.com/headstart-tech/admissions-api/pkg/errors"
)

type tenantRepository struct {
	collection *mongo.Collection
}

// NewTenantRepository reads from the master database, not a tenant database.
func NewTenantRepository(master *mongo.Database) repository.TenantRepository {
	return &tenantRepository{collection: master.Collection("client_configurations")}
}

func (r *tenantRepository) GetClientConfiguration(ctx context.Context, universityID string) (*model.ClientConfiguration, error) {
	var cfg model.ClientConfiguration
	err := r.collection.FindOne(ctx, bson.M{"university_id": universityID}).Decode(&cfg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("client configuration", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client configuration: %w", err)
	}
	return &cfg, nil
}
