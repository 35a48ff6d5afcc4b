package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/headstart-tech/admissions-api/internal/model"
	apperrors "github.com/headstart-tech/admissions-api/pkg/errors"
)

func (r *accessRepository) GetUserAccess(ctx context.Context, userID string) (*model.UserAccess, error) {
	query := `
		SELECT u.id AS user_id, u.role_id, u.college_id
		FROM users u
		WHERE u.id = $1 AND u.is_active = TRUE
	`
	var access model.UserAccess
	err := r.WithReadTx(ctx, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &access, query, userID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("user", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user access: %w", err)
	}
	return &access, nil
}
