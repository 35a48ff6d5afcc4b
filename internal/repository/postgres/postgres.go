package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/headstart-tech/admissions-api/internal/repository"
)

type accessRepository struct {
	BaseRepository
}

func NewAccessRepository(db *sqlx.DB) repository.AccessRepository {
	return &accessRepository{BaseRepository: NewBaseRepository(db)}
}
