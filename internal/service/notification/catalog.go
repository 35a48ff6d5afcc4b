package notification

import (
	"fmt"
	"html"
	"time"

	"github.com/headstart-tech/admissions-api/internal/model"
)

// AutoAssignWindow separates automatic lead allocation from a manual one: an
// allocation this soon after the enquiry was made by the system.
const AutoAssignWindow = 60 * time.Second

const timeLayout = "02 Jan 2006 03:04 PM"

// subject holds the records an entry's message is built from.
type subject struct {
	student     *model.Student
	application *model.Application
}

// draft is what an entry decides; the service fills in the rest of the record.
type draft struct {
	eventType model.EventType
	sendTo    string
	message   string
	at        time.Time
}

type entry struct {
	needsStudent bool
	build        func(in model.EventInput, subj subject, now time.Time) draft
}

var catalog = map[model.EventKind]entry{
	model.KindFollowupScheduled: {
		needsStudent: true,
		build: func(in model.EventInput, subj subject, now time.Time) draft {
			at := followupTime(in, now)
			return draft{
				eventType: model.EventFollowupScheduled,
				sendTo:    subj.student.CounselorID(),
				message:   fmt.Sprintf("A followup with %s has been scheduled for %s", studentSpan(subj.student), at.Format(timeLayout)),
				at:        at,
			}
		},
	},
	model.KindFollowupReminder: {
		needsStudent: true,
		build: func(in model.EventInput, subj subject, now time.Time) draft {
			at := followupTime(in, now)
			return draft{
				eventType: model.EventFollowupReminder,
				sendTo:    subj.student.CounselorID(),
				message:   fmt.Sprintf("Reminder: your followup with %s is due at %s", studentSpan(subj.student), at.Format(timeLayout)),
				at:        at,
			}
		},
	},
	model.KindPaymentStarted: {
		needsStudent: true,
		build: func(in model.EventInput, subj subject, now time.Time) draft {
			return draft{
				eventType: model.EventPaymentStarted,
				sendTo:    subj.student.CounselorID(),
				message:   fmt.Sprintf("%s has started the payment for %s", studentSpan(subj.student), program(subj.application)),
				at:        now,
			}
		},
	},
	model.KindPaymentCaptured: {
		needsStudent: true,
		build: func(in model.EventInput, subj subject, now time.Time) draft {
			return draft{
				eventType: model.EventPaymentCaptured,
				sendTo:    subj.student.CounselorID(),
				message:   fmt.Sprintf("Payment captured from %s for %s", studentSpan(subj.student), program(subj.application)),
				at:        now,
			}
		},
	},
	model.KindApplicationSubmitted: {
		needsStudent: true,
		build: func(in model.EventInput, subj subject, now time.Time) draft {
			return draft{
				eventType: model.EventApplicationSubmitted,
				sendTo:    subj.student.CounselorID(),
				message:   fmt.Sprintf("%s has submitted the application for %s", studentSpan(subj.student), program(subj.application)),
				at:        now,
			}
		},
	},
	model.KindAllocateCounselor: {
		needsStudent: true,
		build:        buildAllocation,
	},
	model.KindStudentQuery: {
		needsStudent: true,
		build: func(in model.EventInput, subj subject, now time.Time) draft {
			msg := fmt.Sprintf("%s has raised a query", studentSpan(subj.student))
			if in.Payload.QueryTitle != "" {
				msg += ": " + html.EscapeString(in.Payload.QueryTitle)
			}
			return draft{
				eventType: model.EventStudentQuery,
				sendTo:    subj.student.CounselorID(),
				message:   msg,
				at:        now,
			}
		},
	},
	model.KindDuplicateEnquiry: {
		needsStudent: true,
		build: func(in model.EventInput, subj subject, now time.Time) draft {
			return draft{
				eventType: model.EventDuplicateEnquiry,
				sendTo:    subj.student.CounselorID(),
				message:   fmt.Sprintf("%s has submitted the enquiry form again", studentSpan(subj.student)),
				at:        now,
			}
		},
	},
	model.KindDataSegmentAssignment: {
		build: func(in model.EventInput, _ subject, now time.Time) draft {
			name := in.Payload.DataSegmentName
			if name == "" {
				name = "A data segment"
			}
			return draft{
				eventType: model.EventDataSegmentAssignment,
				message:   fmt.Sprintf("%s has been assigned to you", html.EscapeString(name)),
				at:        now,
			}
		},
	},
	model.KindNewApplicationForm: {
		needsStudent: true,
		build: func(in model.EventInput, subj subject, now time.Time) draft {
			return draft{
				eventType: model.EventNewApplicationForm,
				sendTo:    subj.student.CounselorID(),
				message:   fmt.Sprintf("%s has started a new application form for %s", studentSpan(subj.student), program(subj.application)),
				at:        now,
			}
		},
	},
}

// buildAllocation treats an allocation within AutoAssignWindow of the enquiry as
// automatic and tells the counselor; later ones are reported to whoever assigned.
func buildAllocation(in model.EventInput, subj subject, now time.Time) draft {
	st := subj.student
	assignedAt := now
	switch {
	case in.Payload.AssignedAt != nil:
		assignedAt = *in.Payload.AssignedAt
	case st.AllocateToCounselor != nil && !st.AllocateToCounselor.LastUpdate.IsZero():
		assignedAt = st.AllocateToCounselor.LastUpdate
	}

	if assignedAt.Sub(st.CreatedAt) <= AutoAssignWindow {
		return draft{
			eventType: model.EventAssignedLead,
			sendTo:    st.CounselorID(),
			message:   fmt.Sprintf("A new lead %s has been assigned to you", studentSpan(st)),
			at:        now,
		}
	}

	counselor := "a counselor"
	if st.AllocateToCounselor != nil && st.AllocateToCounselor.CounselorName != "" {
		counselor = html.EscapeString(st.AllocateToCounselor.CounselorName)
	}
	return draft{
		eventType: model.EventManualAssignment,
		sendTo:    in.Payload.AssignedBy,
		message:   fmt.Sprintf("Lead %s has been assigned to %s", studentSpan(st), counselor),
		at:        now,
	}
}

func followupTime(in model.EventInput, now time.Time) time.Time {
	if in.Payload.FollowupAt != nil {
		return *in.Payload.FollowupAt
	}
	return now
}

// studentSpan renders the student for the UI, which highlights the span and links it
// to the student record.
func studentSpan(st *model.Student) string {
	return fmt.Sprintf(`<span class="notification-inner" data-student-id="%s">%s</span> (%s)`,
		st.ID.Hex(), html.EscapeString(st.FullName()), html.EscapeString(st.BasicDetails.MobileNumber))
}

func program(app *model.Application) string {
	if app == nil || app.ProgramName() == "" {
		return "their application"
	}
	return html.EscapeString(app.ProgramName())
}
