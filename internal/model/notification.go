package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EventType is the persisted, user-facing label of a notification.
type EventType string

const (
	EventFollowupScheduled     EventType = "Followup Scheduled"
	EventFollowupReminder      EventType = "Followup remainder"
	EventPaymentStarted        EventType = "Payment Started"
	EventPaymentCaptured       EventType = "Payment Captured"
	EventApplicationSubmitted  EventType = "Application Submitted"
	EventAssignedLead          EventType = "Assigned Lead"
	EventManualAssignment      EventType = "Manual Assignment of Lead"
	EventStudentQuery          EventType = "Student Created Query"
	EventDuplicateEnquiry      EventType = "Duplicate Enquiry Form"
	EventDataSegmentAssignment EventType = "Data Segment Assignment"
	EventNewApplicationForm    EventType = "New Application Form"
)

// EventKind is the business action that triggers a notification. One kind may
// produce different event types (see KindAllocateCounselor).
type EventKind int

const (
	KindUnknown EventKind = iota
	KindFollowupScheduled
	KindFollowupReminder
	KindPaymentStarted
	KindPaymentCaptured
	KindApplicationSubmitted
	KindAllocateCounselor
	KindStudentQuery
	KindDuplicateEnquiry
	KindDataSegmentAssignment
	KindNewApplicationForm
)

var eventKindNames = map[EventKind]string{
	KindFollowupScheduled:     "Followup Scheduled",
	KindFollowupReminder:      "Followup reminder",
	KindPaymentStarted:        "Payment started",
	KindPaymentCaptured:       "Payment captured",
	KindApplicationSubmitted:  "Application submitted",
	KindAllocateCounselor:     "Allocate counselor",
	KindStudentQuery:          "Student query",
	KindDuplicateEnquiry:      "Duplicate enquiry",
	KindDataSegmentAssignment: "Data segment assignment",
	KindNewApplicationForm:    "New application form",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseEventKind matches names case-insensitively. Anything unrecognised is KindUnknown.
func ParseEventKind(s string) EventKind {
	s = strings.TrimSpace(s)
	for k, name := range eventKindNames {
		if strings.EqualFold(name, s) {
			return k
		}
	}
	return KindUnknown
}

// EventKinds lists every known kind in declaration order.
func EventKinds() []EventKind {
	kinds := make([]EventKind, 0, len(eventKindNames))
	for k := KindFollowupScheduled; k <= KindNewApplicationForm; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// EventPayload carries the kind-specific inputs. Unused fields stay zero.
type EventPayload struct {
	FollowupAt      *time.Time `json:"followup_at,omitempty"`
	AssignedAt      *time.Time `json:"assigned_at,omitempty"`
	AssignedBy      string     `json:"assigned_by,omitempty"`
	DataSegmentName string     `json:"data_segment_name,omitempty"`
	QueryTitle      string     `json:"query_title,omitempty"`
}

type EventInput struct {
	Kind              EventKind
	StudentID         string
	ApplicationID     string
	Payload           EventPayload
	RecipientOverride string
}

type NotificationEvent struct {
	ID            primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	EventType     EventType          `json:"event_type" bson:"event_type"`
	SendTo        string             `json:"send_to" bson:"send_to"`
	StudentID     string             `json:"student_id,omitempty" bson:"student_id,omitempty"`
	ApplicationID string             `json:"application_id,omitempty" bson:"application_id,omitempty"`
	Message       string             `json:"message" bson:"message"`
	MarkAsRead    bool               `json:"mark_as_read" bson:"mark_as_read"`
	EventDateTime time.Time          `json:"event_datetime" bson:"event_datetime"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}

// NotificationCacheEntry is the cache-list form of an event: ids and times as strings.
type NotificationCacheEntry struct {
	ID            string    `json:"_id"`
	EventType     EventType `json:"event_type"`
	SendTo        string    `json:"send_to"`
	StudentID     string    `json:"student_id,omitempty"`
	ApplicationID string    `json:"application_id,omitempty"`
	Message       string    `json:"message"`
	MarkAsRead    bool      `json:"mark_as_read"`
	EventDateTime string    `json:"event_datetime"`
	CreatedAt     string    `json:"created_at"`
}

func (e *NotificationEvent) CacheEntry() NotificationCacheEntry {
	entry := NotificationCacheEntry{
		EventType:     e.EventType,
		SendTo:        e.SendTo,
		StudentID:     e.StudentID,
		ApplicationID: e.ApplicationID,
		Message:       e.Message,
		MarkAsRead:    e.MarkAsRead,
		EventDateTime: e.EventDateTime.UTC().Format(time.RFC3339Nano),
		CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !e.ID.IsZero() {
		entry.ID = e.ID.Hex()
	}
	return entry
}
