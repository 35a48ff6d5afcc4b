package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/headstart-tech/admissions-api/internal/model"
	"github.com/headstart-tech/admissions-api/internal/tenant"
	apperrors "github.com/headstart-tech/admissions-api/pkg/errors"
	"github.com/headstart-tech/admissions-api/pkg/logger"
)

type fakeFollowupRepo struct {
	mu       sync.Mutex
	due      []*model.Followup
	findErr  error
	markErr  map[primitive.ObjectID]error
	from, to time.Time
	reminded []primitive.ObjectID
}

func (f *fakeFollowupRepo) FindDue(_ context.Context, from, to time.Time) ([]*model.Followup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.from, f.to = from, to
	return f.due, f.findErr
}

func (f *fakeFollowupRepo) MarkReminded(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.markErr[id]; err != nil {
		return err
	}
	f.reminded = append(f.reminded, id)
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	inputs  []model.EventInput
	tenants []tenant.Settings
}

func (n *recordingNotifier) WriteAndPublish(ctx context.Context, in model.EventInput) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s, _ := tenant.FromContext(ctx)
	n.inputs = append(n.inputs, in)
	n.tenants = append(n.tenants, s)
}

type fakeResolver struct {
	err error
}

func (r fakeResolver) Resolve(_ context.Context, id string) (tenant.Settings, error) {
	if r.err != nil {
		return tenant.Settings{}, r.err
	}
	return tenant.Settings{AWSEnv: "prod", UniversityID: id, UniversityName: "Example University"}, nil
}

func newWorker(repo *fakeFollowupRepo, notifier *recordingNotifier, resolver TenantResolver) *FollowupReminderWorker {
	w := NewFollowupReminderWorker(repo, notifier, resolver, FollowupReminderConfig{
		Schedule:     "@every 1m",
		Lookahead:    10 * time.Minute,
		UniversityID: "u1",
	}, logger.Nop())
	w.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return w
}

func TestRunOnce(t *testing.T) {
	counselor := primitive.NewObjectID()
	first := &model.Followup{
		ID:            primitive.NewObjectID(),
		StudentID:     primitive.NewObjectID(),
		ApplicationID: primitive.NewObjectID(),
		AssignedTo:    counselor,
		FollowupAt:    time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC),
	}
	second := &model.Followup{
		ID:         primitive.NewObjectID(),
		StudentID:  primitive.NewObjectID(),
		FollowupAt: time.Date(2024, 5, 1, 9, 8, 0, 0, time.UTC),
	}
	repo := &fakeFollowupRepo{due: []*model.Followup{first, second}}
	notifier := &recordingNotifier{}

	require.NoError(t, newWorker(repo, notifier, fakeResolver{}).RunOnce(context.Background()))

	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), repo.from)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 10, 0, 0, time.UTC), repo.to)

	require.Len(t, notifier.inputs, 2)
	in := notifier.inputs[0]
	assert.Equal(t, model.KindFollowupReminder, in.Kind)
	assert.Equal(t, first.StudentID.Hex(), in.StudentID)
	assert.Equal(t, first.ApplicationID.Hex(), in.ApplicationID)
	assert.Equal(t, counselor.Hex(), in.RecipientOverride)
	require.NotNil(t, in.Payload.FollowupAt)
	assert.Equal(t, first.FollowupAt, *in.Payload.FollowupAt)
	assert.Equal(t, "exampleuniversity", notifier.tenants[0].Folder())

	assert.Empty(t, notifier.inputs[1].ApplicationID)
	assert.Empty(t, notifier.inputs[1].RecipientOverride)
	assert.Equal(t, []primitive.ObjectID{first.ID, second.ID}, repo.reminded)
}

func TestRunOnce_MarkFailureContinues(t *testing.T) {
	a := &model.Followup{ID: primitive.NewObjectID(), StudentID: primitive.NewObjectID()}
	b := &model.Followup{ID: primitive.NewObjectID(), StudentID: primitive.NewObjectID()}
	repo := &fakeFollowupRepo{
		due:     []*model.Followup{a, b},
		markErr: map[primitive.ObjectID]error{a.ID: errors.New("write conflict")},
	}
	notifier := &recordingNotifier{}

	require.NoError(t, newWorker(repo, notifier, fakeResolver{}).RunOnce(context.Background()))
	assert.Len(t, notifier.inputs, 2)
	assert.Equal(t, []primitive.ObjectID{b.ID}, repo.reminded)
}

func TestRunOnce_Errors(t *testing.T) {
	notifier := &recordingNotifier{}

	err := newWorker(&fakeFollowupRepo{}, notifier, fakeResolver{err: apperrors.Forbidden("university is inactive")}).RunOnce(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	err = newWorker(&fakeFollowupRepo{findErr: errors.New("mongo down")}, notifier, fakeResolver{}).RunOnce(context.Background())
	assert.EqualError(t, err, "mongo down")
	assert.Empty(t, notifier.inputs)
}

func TestStart_InvalidSchedule(t *testing.T) {
	w := newWorker(&fakeFollowupRepo{}, &recordingNotifier{}, fakeResolver{})
	w.config.Schedule = "every so often"

	assert.Error(t, w.Start(context.Background()))
}

func TestStart_StopsWithContext(t *testing.T) {
	w := newWorker(&fakeFollowupRepo{}, &recordingNotifier{}, fakeResolver{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
