package scheduling

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ridgeline-services/crm-server/cmd/models"
)

// AppointmentStore is the slice of the appointment table the scheduler
// needs. The gorm-backed implementation lives in service/appointment.
type AppointmentStore interface {
	ListScheduled(ctx context.Context) ([]models.Appointment, error)
	GetByID(ctx context.Context, id uint) (*models.Appointment, error)
	// ScheduledForLead returns the lead's active appointment, or nil when
	// the lead has none. At most one scheduled appointment exists per lead.
	ScheduledForLead(ctx context.Context, leadID uint) (*models.Appointment, error)
	Create(ctx context.Context, appt *models.Appointment) error
	Update(ctx context.Context, appt *models.Appointment) error
}

type LeadStore interface {
	GetByID(ctx context.Context, id uint) (*models.Lead, error)
	Update(ctx context.Context, lead *models.Lead) error
}

// Publisher receives change events for the live dashboard feed. The
// transport behind it is a collaborator, not the scheduler's concern.
type Publisher interface {
	Publish(action, table string, record interface{})
}

// Scheduler owns the booking rules: grid rounding, slot derivation, the
// overlap check, and keeping Lead.appointment_date/status in step with the
// appointment lifecycle. The appointment record is the source of truth;
// the lead fields are a projection written after it.
type Scheduler struct {
	cfg          Config
	appointments AppointmentStore
	leads        LeadStore
	publisher    Publisher
}

func NewScheduler(cfg Config, appointments AppointmentStore, leads LeadStore, publisher Publisher) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		appointments: appointments,
		leads:        leads,
		publisher:    publisher,
	}
}

func (s *Scheduler) Config() Config {
	return s.cfg
}

type ScheduleRequest struct {
	// AppointmentID targets an existing appointment for an in-place
	// reschedule. Zero means create (or reschedule the lead's active
	// appointment when LeadID is set and one exists).
	AppointmentID uint
	LeadID        *uint
	Start         time.Time
	Title         string
	Description   string
	Location      string
}

type ScheduleResult struct {
	Appointment *models.Appointment
	Lead        *models.Lead
	Rescheduled bool
}

// Schedule books or reschedules an appointment. The raw start is floored
// to the grid before anything else, the slot is checked against every
// scheduled appointment, and only then is the store written. The lead
// projection is updated after the appointment write succeeds; if that
// second write fails the result still carries the saved appointment and
// the error is a *ProjectionSyncError.
func (s *Scheduler) Schedule(ctx context.Context, req ScheduleRequest) (*ScheduleResult, error) {
	start := s.cfg.RoundToGrid(req.Start)
	slot := s.cfg.DeriveSlot(start)

	target, err := s.resolveTarget(ctx, req)
	if err != nil {
		return nil, err
	}

	// Fetch fresh immediately before the check so the availability read is
	// as close to the write as possible.
	existing, err := s.appointments.ListScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing scheduled appointments: %w", err)
	}

	var excludeID uint
	if target != nil {
		excludeID = target.ID
	}
	if !IsAvailable(slot, existing, excludeID) {
		return nil, ErrSlotConflict
	}

	result := &ScheduleResult{}
	if target != nil {
		target.StartTime = slot.Start
		target.EndTime = slot.End
		target.Status = models.AppointmentStatusScheduled
		applyMetadata(target, req)
		if err := s.appointments.Update(ctx, target); err != nil {
			return nil, &StoreWriteError{Op: "reschedule", Err: err}
		}
		result.Appointment = target
		result.Rescheduled = true
		s.publish("UPDATE", "appointments", target)
	} else {
		appt := &models.Appointment{
			LeadID:    req.LeadID,
			StartTime: slot.Start,
			EndTime:   slot.End,
			Status:    models.AppointmentStatusScheduled,
		}
		applyMetadata(appt, req)
		if appt.Title == "" {
			appt.Title = "Consultation"
		}
		if err := s.appointments.Create(ctx, appt); err != nil {
			return nil, &StoreWriteError{Op: "create", Err: err}
		}
		result.Appointment = appt
		s.publish("INSERT", "appointments", appt)
	}

	if result.Appointment.LeadID == nil {
		return result, nil
	}

	lead, err := s.syncLeadBooked(ctx, *result.Appointment.LeadID, slot.Start)
	if err != nil {
		return result, &ProjectionSyncError{
			AppointmentID: result.Appointment.ID,
			LeadID:        *result.Appointment.LeadID,
			Err:           err,
		}
	}
	result.Lead = lead
	return result, nil
}

// Cancel moves a scheduled appointment to cancelled and clears the lead
// projection. Cancelling an already-cancelled appointment is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, appointmentID uint) (*models.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status == models.AppointmentStatusCancelled {
		return appt, nil
	}
	if appt.Status != models.AppointmentStatusScheduled {
		return nil, ErrNotReschedulable
	}

	appt.Status = models.AppointmentStatusCancelled
	if err := s.appointments.Update(ctx, appt); err != nil {
		return nil, &StoreWriteError{Op: "cancel", Err: err}
	}
	s.publish("UPDATE", "appointments", appt)

	if appt.LeadID == nil {
		return appt, nil
	}
	if err := s.syncLeadCancelled(ctx, *appt.LeadID); err != nil {
		log.Printf("Cancel: lead %d projection update failed for appointment %d: %v", *appt.LeadID, appt.ID, err)
		return appt, &ProjectionSyncError{AppointmentID: appt.ID, LeadID: *appt.LeadID, Err: err}
	}
	return appt, nil
}

// Complete marks a visit as done. The appointment leaves the scheduled
// state, so the lead's appointment_date is cleared; the funnel status is
// left for the office to move forward.
func (s *Scheduler) Complete(ctx context.Context, appointmentID uint) (*models.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != models.AppointmentStatusScheduled {
		return nil, ErrNotReschedulable
	}

	appt.Status = models.AppointmentStatusCompleted
	if err := s.appointments.Update(ctx, appt); err != nil {
		return nil, &StoreWriteError{Op: "complete", Err: err}
	}
	s.publish("UPDATE", "appointments", appt)

	if appt.LeadID == nil {
		return appt, nil
	}
	lead, err := s.leads.GetByID(ctx, *appt.LeadID)
	if err != nil {
		return appt, &ProjectionSyncError{AppointmentID: appt.ID, LeadID: *appt.LeadID, Err: err}
	}
	lead.AppointmentDate = nil
	if err := s.leads.Update(ctx, lead); err != nil {
		return appt, &ProjectionSyncError{AppointmentID: appt.ID, LeadID: *appt.LeadID, Err: err}
	}
	s.publish("UPDATE", "leads", lead)
	return appt, nil
}

// FreeSlots lists the open slots for a day, checked against a fresh read
// of the scheduled set.
func (s *Scheduler) FreeSlots(ctx context.Context, day time.Time, now time.Time) ([]Interval, error) {
	existing, err := s.appointments.ListScheduled(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing scheduled appointments: %w", err)
	}
	return s.cfg.FreeSlots(day, existing, now), nil
}

func (s *Scheduler) resolveTarget(ctx context.Context, req ScheduleRequest) (*models.Appointment, error) {
	if req.AppointmentID != 0 {
		appt, err := s.appointments.GetByID(ctx, req.AppointmentID)
		if err != nil {
			return nil, err
		}
		if appt.Status != models.AppointmentStatusScheduled {
			return nil, ErrNotReschedulable
		}
		return appt, nil
	}
	if req.LeadID != nil {
		// A lead keeps at most one active appointment; booking again moves it.
		return s.appointments.ScheduledForLead(ctx, *req.LeadID)
	}
	return nil, nil
}

func (s *Scheduler) syncLeadBooked(ctx context.Context, leadID uint, start time.Time) (*models.Lead, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	lead.AppointmentDate = &start
	switch lead.Status {
	case models.LeadStatusNew, models.LeadStatusContacted, models.LeadStatusNeedsFollowUp, models.LeadStatusAppointmentCancelled:
		lead.Status = models.LeadStatusBooked
		if lead.BookedAt == nil {
			now := time.Now().UTC()
			lead.BookedAt = &now
		}
	}
	if err := s.leads.Update(ctx, lead); err != nil {
		return nil, err
	}
	s.publish("UPDATE", "leads", lead)
	return lead, nil
}

func (s *Scheduler) syncLeadCancelled(ctx context.Context, leadID uint) error {
	lead, err := s.leads.GetByID(ctx, leadID)
	if err != nil {
		return err
	}
	lead.AppointmentDate = nil
	lead.Status = models.LeadStatusAppointmentCancelled
	if err := s.leads.Update(ctx, lead); err != nil {
		return err
	}
	s.publish("UPDATE", "leads", lead)
	return nil
}

func (s *Scheduler) publish(action, table string, record interface{}) {
	if s.publisher != nil {
		s.publisher.Publish(action, table, record)
	}
}

func applyMetadata(appt *models.Appointment, req ScheduleRequest) {
	if req.Title != "" {
		appt.Title = req.Title
	}
	if req.Description != "" {
		appt.Description = req.Description
	}
	if req.Location != "" {
		appt.Location = req.Location
	}
}
