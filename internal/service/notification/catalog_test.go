package notification

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/headstart-tech/admissions-api/internal/model"
)

func TestCatalog_CoversEveryKind(t *testing.T) {
	for _, kind := range model.EventKinds() {
		_, ok := catalog[kind]
		assert.True(t, ok, "no catalog entry for %s", kind)
	}
	assert.Len(t, catalog, len(model.EventKinds()))
}

func TestBuild_EveryKind(t *testing.T) {
	f := setup(t, nil)
	f.students.put(studentWithCounselor(f.now.Add(-time.Hour)))

	for _, kind := range model.EventKinds() {
		t.Run(kind.String(), func(t *testing.T) {
			event, ok := f.svc.Build(context.Background(), model.EventInput{
				Kind:              kind,
				StudentID:         studentID.Hex(),
				ApplicationID:     applicationID.Hex(),
				RecipientOverride: "user-9",
			})
			require.True(t, ok)
			assert.Equal(t, "user-9", event.SendTo)
			assert.NotEmpty(t, event.EventType)
			assert.NotEmpty(t, event.Message)
			assert.False(t, event.MarkAsRead)
			assert.Equal(t, f.now, event.CreatedAt)
			assert.False(t, event.EventDateTime.IsZero())
		})
	}
}

func TestBuild_UnknownKindIsNoop(t *testing.T) {
	f := setup(t, nil)

	_, ok := f.svc.Build(context.Background(), model.EventInput{Kind: model.KindUnknown, StudentID: studentID.Hex()})
	assert.False(t, ok)
	_, ok = f.svc.Build(context.Background(), model.EventInput{Kind: model.ParseEventKind("Rocket launched")})
	assert.False(t, ok)
}

func TestBuild_NoRecipientIsNoop(t *testing.T) {
	f := setup(t, nil)
	st := studentWithCounselor(f.now)
	st.AllocateToCounselor = nil
	f.students.put(st)

	_, ok := f.svc.Build(context.Background(), model.EventInput{Kind: model.KindPaymentStarted, StudentID: studentID.Hex()})
	assert.False(t, ok)
}

func TestBuild_DataSegmentNeedsOverride(t *testing.T) {
	f := setup(t, nil)
	in := model.EventInput{
		Kind:    model.KindDataSegmentAssignment,
		Payload: model.EventPayload{DataSegmentName: "Engineering 2024"},
	}

	_, ok := f.svc.Build(context.Background(), in)
	assert.False(t, ok)

	in.RecipientOverride = "user-3"
	event, ok := f.svc.Build(context.Background(), in)
	require.True(t, ok)
	assert.Equal(t, model.EventDataSegmentAssignment, event.EventType)
	assert.Equal(t, "Engineering 2024 has been assigned to you", event.Message)
	assert.Equal(t, 0, f.students.calls)
}

func TestBuild_MissingStudentIsNoop(t *testing.T) {
	f := setup(t, nil)

	_, ok := f.svc.Build(context.Background(), model.EventInput{Kind: model.KindStudentQuery, StudentID: primitive.NewObjectID().Hex()})
	assert.False(t, ok)
}

func TestBuild_MessageHighlightsStudent(t *testing.T) {
	f := setup(t, nil)
	f.students.put(studentWithCounselor(f.now))

	event, ok := f.svc.Build(context.Background(), model.EventInput{
		Kind:          model.KindApplicationSubmitted,
		StudentID:     studentID.Hex(),
		ApplicationID: applicationID.Hex(),
	})
	require.True(t, ok)

	span := `<span class="notification-inner" data-student-id="` + studentID.Hex() + `">Asha R Verma</span> (9876543210)`
	assert.True(t, strings.HasPrefix(event.Message, span), event.Message)
	assert.Contains(t, event.Message, "B.Tech in Computer Science")
	assert.Equal(t, counselorID.Hex(), event.SendTo)
	assert.Equal(t, applicationID.Hex(), event.ApplicationID)
}

func TestBuild_FollowupUsesScheduledTime(t *testing.T) {
	f := setup(t, nil)
	f.students.put(studentWithCounselor(f.now))
	at := time.Date(2024, 5, 3, 15, 30, 0, 0, time.UTC)

	event, ok := f.svc.Build(context.Background(), model.EventInput{
		Kind:      model.KindFollowupScheduled,
		StudentID: studentID.Hex(),
		Payload:   model.EventPayload{FollowupAt: &at},
	})
	require.True(t, ok)
	assert.Equal(t, model.EventFollowupScheduled, event.EventType)
	assert.Equal(t, at, event.EventDateTime)
	assert.Contains(t, event.Message, "03 May 2024 03:30 PM")
}

func TestBuild_AllocateCounselor(t *testing.T) {
	tests := []struct {
		name       string
		enquiryAge time.Duration
		wantType   model.EventType
		wantSendTo string
	}{
		{"assigned with the enquiry", 30 * time.Second, model.EventAssignedLead, counselorID.Hex()},
		{"exactly on the window", AutoAssignWindow, model.EventAssignedLead, counselorID.Hex()},
		{"assigned later by hand", 2 * time.Hour, model.EventManualAssignment, "manager-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, nil)
			f.students.put(studentWithCounselor(f.now.Add(-tt.enquiryAge)))

			event, ok := f.svc.Build(context.Background(), model.EventInput{
				Kind:      model.KindAllocateCounselor,
				StudentID: studentID.Hex(),
				Payload:   model.EventPayload{AssignedBy: "manager-1"},
			})
			require.True(t, ok)
			assert.Equal(t, tt.wantType, event.EventType)
			assert.Equal(t, tt.wantSendTo, event.SendTo)
		})
	}
}

func TestBuild_AllocateCounselorExplicitTime(t *testing.T) {
	f := setup(t, nil)
	f.students.put(studentWithCounselor(f.now.Add(-time.Hour)))
	assignedAt := f.now.Add(-time.Hour + 10*time.Second)

	event, ok := f.svc.Build(context.Background(), model.EventInput{
		Kind:      model.KindAllocateCounselor,
		StudentID: studentID.Hex(),
		Payload:   model.EventPayload{AssignedAt: &assignedAt, AssignedBy: "manager-1"},
	})
	require.True(t, ok)
	assert.Equal(t, model.EventAssignedLead, event.EventType)
}
