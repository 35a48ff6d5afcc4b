package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Followup struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	StudentID     primitive.ObjectID `json:"student_id" bson:"student_id"`
	ApplicationID primitive.ObjectID `json:"application_id" bson:"application_id"`
	AssignedTo    primitive.ObjectID `json:"assigned_to" bson:"assigned_to"`
	Note          string             `json:"followup_note" bson:"followup_note"`
	FollowupAt    time.Time          `json:"followup_date" bson:"followup_date"`
	Status        string             `json:"status" bson:"status"`
	ReminderSent  bool               `json:"reminder_sent" bson:"reminder_sent"`
}
