package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type StudentBasicDetails struct {
	FirstName    string `json:"first_name" bson:"first_name"`
	MiddleName   string `json:"middle_name,omitempty" bson:"middle_name,omitempty"`
	LastName     string `json:"last_name,omitempty" bson:"last_name,omitempty"`
	Email        string `json:"email" bson:"email"`
	MobileNumber string `json:"mobile_number" bson:"mobile_number"`
}

type CounselorAllocation struct {
	CounselorID   primitive.ObjectID `json:"counselor_id" bson:"counselor_id"`
	CounselorName string             `json:"counselor_name" bson:"counselor_name"`
	LastUpdate    time.Time          `json:"last_update" bson:"last_update"`
}

type Student struct {
	ID                  primitive.ObjectID   `json:"id" bson:"_id,omitempty"`
	BasicDetails        StudentBasicDetails  `json:"basic_details" bson:"basic_details"`
	AllocateToCounselor *CounselorAllocation `json:"allocate_to_counselor,omitempty" bson:"allocate_to_counselor,omitempty"`
	// CreatedAt is the enquiry time.
	CreatedAt           time.Time            `json:"created_at" bson:"created_at"`
}

func (s *Student) FullName() string {
	d := s.BasicDetails
	parts := make([]string, 0, 3)
	for _, p := range []string{d.FirstName, d.MiddleName, d.LastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// CounselorID is empty when no counselor is allocated.
func (s *Student) CounselorID() string {
	if s.AllocateToCounselor == nil || s.AllocateToCounselor.CounselorID.IsZero() {
		return ""
	}
	return s.AllocateToCounselor.CounselorID.Hex()
}

type Application struct {
	ID                  primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	StudentID           primitive.ObjectID `json:"student_id" bson:"student_id"`
	CourseName          string             `json:"course_name" bson:"course_name"`
	SpecName            string             `json:"spec_name,omitempty" bson:"spec_name1,omitempty"`
	CustomApplicationID string             `json:"custom_application_id" bson:"custom_application_id"`
	PaymentInitiated    bool               `json:"payment_initiated" bson:"payment_initiated"`
	CreatedAt           time.Time          `json:"created_at" bson:"enquiry_date"`
}

// ProgramName is the course, with the specialization when there is one.
func (a *Application) ProgramName() string {
	if a.SpecName == "" {
		return a.CourseName
	}
	return a.CourseName + " in " + a.SpecName
}
