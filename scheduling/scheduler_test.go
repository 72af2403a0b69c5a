package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ridgeline-services/crm-server/cmd/models"
)

type fakeAppointmentStore struct {
	appointments map[uint]*models.Appointment
	nextID       uint
	failCreate   error
	failUpdate   error
}

func newFakeAppointmentStore() *fakeAppointmentStore {
	return &fakeAppointmentStore{appointments: map[uint]*models.Appointment{}, nextID: 1}
}

func (s *fakeAppointmentStore) ListScheduled(ctx context.Context) ([]models.Appointment, error) {
	var out []models.Appointment
	for _, appt := range s.appointments {
		if appt.Status == models.AppointmentStatusScheduled {
			out = append(out, *appt)
		}
	}
	return out, nil
}

func (s *fakeAppointmentStore) GetByID(ctx context.Context, id uint) (*models.Appointment, error) {
	appt, ok := s.appointments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *appt
	return &copied, nil
}

func (s *fakeAppointmentStore) ScheduledForLead(ctx context.Context, leadID uint) (*models.Appointment, error) {
	for _, appt := range s.appointments {
		if appt.LeadID != nil && *appt.LeadID == leadID && appt.Status == models.AppointmentStatusScheduled {
			copied := *appt
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeAppointmentStore) Create(ctx context.Context, appt *models.Appointment) error {
	if s.failCreate != nil {
		return s.failCreate
	}
	appt.ID = s.nextID
	s.nextID++
	copied := *appt
	s.appointments[appt.ID] = &copied
	return nil
}

func (s *fakeAppointmentStore) Update(ctx context.Context, appt *models.Appointment) error {
	if s.failUpdate != nil {
		return s.failUpdate
	}
	if _, ok := s.appointments[appt.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *appt
	s.appointments[appt.ID] = &copied
	return nil
}

type fakeLeadStore struct {
	leads      map[uint]*models.Lead
	failUpdate error
}

func newFakeLeadStore(leads ...*models.Lead) *fakeLeadStore {
	s := &fakeLeadStore{leads: map[uint]*models.Lead{}}
	for _, lead := range leads {
		copied := *lead
		s.leads[lead.ID] = &copied
	}
	return s
}

func (s *fakeLeadStore) GetByID(ctx context.Context, id uint) (*models.Lead, error) {
	lead, ok := s.leads[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *lead
	return &copied, nil
}

func (s *fakeLeadStore) Update(ctx context.Context, lead *models.Lead) error {
	if s.failUpdate != nil {
		return s.failUpdate
	}
	copied := *lead
	s.leads[lead.ID] = &copied
	return nil
}

type recordingPublisher struct {
	events []string
}

func (p *recordingPublisher) Publish(action, table string, record interface{}) {
	p.events = append(p.events, action+" "+table)
}

func newTestLead(id uint, status string) *models.Lead {
	lead := &models.Lead{FullName: "Dana Whitfield", Status: status}
	lead.ID = id
	return lead
}

func at(h, m int) time.Time {
	return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC)
}

func TestSchedule_NewLeadBecomesBooked(t *testing.T) {
	appts := newFakeAppointmentStore()
	leads := newFakeLeadStore(newTestLead(1, models.LeadStatusNew))
	pub := &recordingPublisher{}
	s := NewScheduler(DefaultConfig(), appts, leads, pub)

	leadID := uint(1)
	res, err := s.Schedule(context.Background(), ScheduleRequest{
		LeadID: &leadID,
		Start:  at(10, 5),
		Title:  "Roof inspection",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Appointment)

	assert.True(t, res.Appointment.StartTime.Equal(at(10, 0)), "start should floor to 10:00")
	assert.True(t, res.Appointment.EndTime.Equal(at(11, 0)), "end should be start + 1h")
	assert.Equal(t, models.AppointmentStatusScheduled, res.Appointment.Status)
	assert.False(t, res.Rescheduled)

	require.NotNil(t, res.Lead)
	assert.Equal(t, models.LeadStatusBooked, res.Lead.Status)
	require.NotNil(t, res.Lead.AppointmentDate)
	assert.True(t, res.Lead.AppointmentDate.Equal(at(10, 0)))
	assert.NotNil(t, res.Lead.BookedAt)

	assert.Contains(t, pub.events, "INSERT appointments")
	assert.Contains(t, pub.events, "UPDATE leads")
}

func TestSchedule_Conflict(t *testing.T) {
	appts := newFakeAppointmentStore()
	require.NoError(t, appts.Create(context.Background(), &models.Appointment{
		StartTime: at(9, 0),
		EndTime:   at(10, 0),
		Status:    models.AppointmentStatusScheduled,
	}))
	leads := newFakeLeadStore(newTestLead(1, models.LeadStatusNew))
	s := NewScheduler(DefaultConfig(), appts, leads, nil)

	leadID := uint(1)
	_, err := s.Schedule(context.Background(), ScheduleRequest{LeadID: &leadID, Start: at(9, 30)})
	require.ErrorIs(t, err, ErrSlotConflict)

	// No mutation on conflict.
	lead, err := leads.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusNew, lead.Status)
	assert.Nil(t, lead.AppointmentDate)
	scheduled, _ := appts.ListScheduled(context.Background())
	assert.Len(t, scheduled, 1)
}

func TestSchedule_BackToBackIsAllowed(t *testing.T) {
	appts := newFakeAppointmentStore()
	require.NoError(t, appts.Create(context.Background(), &models.Appointment{
		StartTime: at(13, 0),
		EndTime:   at(14, 0),
		Status:    models.AppointmentStatusScheduled,
	}))
	s := NewScheduler(DefaultConfig(), appts, newFakeLeadStore(), nil)

	res, err := s.Schedule(context.Background(), ScheduleRequest{Start: at(14, 0)})
	require.NoError(t, err)
	assert.True(t, res.Appointment.StartTime.Equal(at(14, 0)))
}

func TestSchedule_ReschedulesLeadsExistingAppointment(t *testing.T) {
	appts := newFakeAppointmentStore()
	leadID := uint(1)
	require.NoError(t, appts.Create(context.Background(), &models.Appointment{
		LeadID:    &leadID,
		StartTime: at(10, 0),
		EndTime:   at(11, 0),
		Status:    models.AppointmentStatusScheduled,
	}))
	leads := newFakeLeadStore(newTestLead(1, models.LeadStatusBooked))
	s := NewScheduler(DefaultConfig(), appts, leads, nil)

	// Booking the same lead again moves the existing appointment instead
	// of creating a second one.
	res, err := s.Schedule(context.Background(), ScheduleRequest{LeadID: &leadID, Start: at(15, 17)})
	require.NoError(t, err)
	assert.True(t, res.Rescheduled)
	assert.True(t, res.Appointment.StartTime.Equal(at(15, 0)))

	scheduled, _ := appts.ListScheduled(context.Background())
	require.Len(t, scheduled, 1)
	assert.True(t, scheduled[0].StartTime.Equal(at(15, 0)))

	lead, _ := leads.GetByID(context.Background(), 1)
	require.NotNil(t, lead.AppointmentDate)
	assert.True(t, lead.AppointmentDate.Equal(at(15, 0)))
}

func TestSchedule_RescheduleExcludesSelfButDetectsOthers(t *testing.T) {
	appts := newFakeAppointmentStore()
	x := &models.Appointment{StartTime: at(10, 0), EndTime: at(11, 0), Status: models.AppointmentStatusScheduled}
	require.NoError(t, appts.Create(context.Background(), x))
	other := &models.Appointment{StartTime: at(10, 30), EndTime: at(11, 30), Status: models.AppointmentStatusScheduled}
	require.NoError(t, appts.Create(context.Background(), other))
	s := NewScheduler(DefaultConfig(), appts, newFakeLeadStore(), nil)

	// Moving X onto the other appointment's slot must fail and leave X alone.
	_, err := s.Schedule(context.Background(), ScheduleRequest{AppointmentID: x.ID, Start: at(10, 30)})
	require.ErrorIs(t, err, ErrSlotConflict)

	unchanged, err := appts.GetByID(context.Background(), x.ID)
	require.NoError(t, err)
	assert.True(t, unchanged.StartTime.Equal(at(10, 0)))

	// Moving X within its own slot's shadow is fine: it never conflicts
	// with itself.
	res, err := s.Schedule(context.Background(), ScheduleRequest{AppointmentID: x.ID, Start: at(9, 30)})
	require.NoError(t, err)
	assert.True(t, res.Appointment.StartTime.Equal(at(9, 30)))
}

func TestSchedule_StoreWriteFailureLeavesLeadUntouched(t *testing.T) {
	appts := newFakeAppointmentStore()
	appts.failCreate = errors.New("connection reset")
	leads := newFakeLeadStore(newTestLead(1, models.LeadStatusNew))
	s := NewScheduler(DefaultConfig(), appts, leads, nil)

	leadID := uint(1)
	_, err := s.Schedule(context.Background(), ScheduleRequest{LeadID: &leadID, Start: at(10, 0)})

	var writeErr *StoreWriteError
	require.ErrorAs(t, err, &writeErr)

	lead, _ := leads.GetByID(context.Background(), 1)
	assert.Equal(t, models.LeadStatusNew, lead.Status)
	assert.Nil(t, lead.AppointmentDate)
}

func TestSchedule_ProjectionFailureIsDegradedSuccess(t *testing.T) {
	appts := newFakeAppointmentStore()
	leads := newFakeLeadStore(newTestLead(1, models.LeadStatusNew))
	leads.failUpdate = errors.New("connection reset")
	s := NewScheduler(DefaultConfig(), appts, leads, nil)

	leadID := uint(1)
	res, err := s.Schedule(context.Background(), ScheduleRequest{LeadID: &leadID, Start: at(10, 0)})

	var syncErr *ProjectionSyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, uint(1), syncErr.LeadID)

	// The appointment write already landed and is reported back.
	require.NotNil(t, res)
	require.NotNil(t, res.Appointment)
	scheduled, _ := appts.ListScheduled(context.Background())
	assert.Len(t, scheduled, 1)
}

func TestCancel_ClearsLeadProjection(t *testing.T) {
	appts := newFakeAppointmentStore()
	leads := newFakeLeadStore(newTestLead(1, models.LeadStatusNew))
	s := NewScheduler(DefaultConfig(), appts, leads, nil)

	leadID := uint(1)
	res, err := s.Schedule(context.Background(), ScheduleRequest{LeadID: &leadID, Start: at(10, 5)})
	require.NoError(t, err)

	cancelled, err := s.Cancel(context.Background(), res.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentStatusCancelled, cancelled.Status)

	lead, _ := leads.GetByID(context.Background(), 1)
	assert.Nil(t, lead.AppointmentDate)
	assert.Equal(t, models.LeadStatusAppointmentCancelled, lead.Status)
	// booked_at is set once and survives the cancellation.
	assert.NotNil(t, lead.BookedAt)
}

func TestCancel_AlreadyCancelledIsNoOp(t *testing.T) {
	appts := newFakeAppointmentStore()
	leadID := uint(1)
	appt := &models.Appointment{LeadID: &leadID, StartTime: at(10, 0), EndTime: at(11, 0), Status: models.AppointmentStatusCancelled}
	require.NoError(t, appts.Create(context.Background(), appt))
	s := NewScheduler(DefaultConfig(), appts, newFakeLeadStore(newTestLead(1, models.LeadStatusAppointmentCancelled)), nil)

	got, err := s.Cancel(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentStatusCancelled, got.Status)
}

func TestCancel_RebookAfterCancellation(t *testing.T) {
	appts := newFakeAppointmentStore()
	leads := newFakeLeadStore(newTestLead(1, models.LeadStatusNew))
	s := NewScheduler(DefaultConfig(), appts, leads, nil)

	leadID := uint(1)
	res, err := s.Schedule(context.Background(), ScheduleRequest{LeadID: &leadID, Start: at(10, 0)})
	require.NoError(t, err)
	firstBookedAt := res.Lead.BookedAt

	_, err = s.Cancel(context.Background(), res.Appointment.ID)
	require.NoError(t, err)

	// An appointment_cancelled lead books again into booked, and the slot
	// freed by the cancellation is reusable.
	res2, err := s.Schedule(context.Background(), ScheduleRequest{LeadID: &leadID, Start: at(10, 0)})
	require.NoError(t, err)
	assert.False(t, res2.Rescheduled, "cancelled appointment must not be reused")
	assert.Equal(t, models.LeadStatusBooked, res2.Lead.Status)
	assert.Equal(t, firstBookedAt, res2.Lead.BookedAt)
}

func TestComplete_ClearsAppointmentDateKeepsFunnel(t *testing.T) {
	appts := newFakeAppointmentStore()
	leads := newFakeLeadStore(newTestLead(1, models.LeadStatusNew))
	s := NewScheduler(DefaultConfig(), appts, leads, nil)

	leadID := uint(1)
	res, err := s.Schedule(context.Background(), ScheduleRequest{LeadID: &leadID, Start: at(10, 0)})
	require.NoError(t, err)

	done, err := s.Complete(context.Background(), res.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentStatusCompleted, done.Status)

	lead, _ := leads.GetByID(context.Background(), 1)
	assert.Nil(t, lead.AppointmentDate)
	assert.Equal(t, models.LeadStatusBooked, lead.Status)
}

func TestSchedule_AppointmentWithoutLead(t *testing.T) {
	appts := newFakeAppointmentStore()
	s := NewScheduler(DefaultConfig(), appts, newFakeLeadStore(), nil)

	res, err := s.Schedule(context.Background(), ScheduleRequest{Start: at(13, 17), Title: "Supplier visit"})
	require.NoError(t, err)
	assert.True(t, res.Appointment.StartTime.Equal(at(13, 0)))
	assert.Nil(t, res.Appointment.LeadID)
	assert.Nil(t, res.Lead)
}
