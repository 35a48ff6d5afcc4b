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

type studentRepository struct {
	students     *mongo.Collection
	applications *mongo.Collection
}

func NewStudentRepository(db *mongo.Database) repository.StudentRepository {
	return &studentRepository{
		students:     db.Collection("students"),
		applications: db.Collection("applications"),
	}
}

func (r *studentRepository) GetStudent(ctx context.Context, id string) (*model.Student, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, apperrors.BadRequest("invalid student id", err)
	}

	var student model.Student
	err = r.students.FindOne(ctx, bson.M{"_id": oid}).Decode(&student)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("student", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	return &student, nil
}

func (r *studentRepository) GetApplication(ctx context.Context, id string) (*model.Application, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, apperrors.BadRequest("invalid application id", err)
	}

	var application model.Application
	err = r.applications.FindOne(ctx, bson.M{"_id": oid}).Decode(&application)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("application", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return &application, nil
}
