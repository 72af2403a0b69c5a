package appointment

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ridgeline-services/crm-server/cmd/models"
)

// Store is the gorm-backed implementation of the scheduler's
// AppointmentStore contract.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) ListScheduled(ctx context.Context) ([]models.Appointment, error) {
	var appointments []models.Appointment
	err := s.db.WithContext(ctx).
		Where("status = ?", models.AppointmentStatusScheduled).
		Find(&appointments).Error
	return appointments, err
}

func (s *Store) GetByID(ctx context.Context, id uint) (*models.Appointment, error) {
	var appt models.Appointment
	if err := s.db.WithContext(ctx).First(&appt, id).Error; err != nil {
		return nil, err
	}
	return &appt, nil
}

func (s *Store) ScheduledForLead(ctx context.Context, leadID uint) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.db.WithContext(ctx).
		Where("lead_id = ? AND status = ?", leadID, models.AppointmentStatusScheduled).
		Order("start_time ASC").
		First(&appt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (s *Store) Create(ctx context.Context, appt *models.Appointment) error {
	return s.db.WithContext(ctx).Create(appt).Error
}

func (s *Store) Update(ctx context.Context, appt *models.Appointment) error {
	return s.db.WithContext(ctx).Save(appt).Error
}

// LeadStore is the gorm-backed lead projection writer used by the scheduler.
type LeadStore struct {
	db *gorm.DB
}

func NewLeadStore(db *gorm.DB) *LeadStore {
	return &LeadStore{db: db}
}

func (s *LeadStore) GetByID(ctx context.Context, id uint) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).First(&lead, id).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

func (s *LeadStore) Update(ctx context.Context, lead *models.Lead) error {
	// Save skips nil pointer fields, so clearing appointment_date needs an
	// explicit column update.
	return s.db.WithContext(ctx).Model(lead).
		Select("appointment_date", "status", "booked_at").
		Updates(map[string]interface{}{
			"appointment_date": lead.AppointmentDate,
			"status":           lead.Status,
			"booked_at":        lead.BookedAt,
		}).Error
}
