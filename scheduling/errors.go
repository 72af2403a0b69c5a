package scheduling

import (
	"errors"
	"fmt"
)

// ErrSlotConflict means the requested slot overlaps a scheduled appointment.
// Nothing was written; the caller should re-prompt for a different time.
var ErrSlotConflict = errors.New("time slot conflicts with an existing appointment")

// ErrNotReschedulable means the target appointment is no longer in the
// scheduled state and cannot be moved or cancelled again.
var ErrNotReschedulable = errors.New("appointment is not in a reschedulable state")

// StoreWriteError wraps a failed appointment write. The lead projection was
// not touched, so a retry is safe.
type StoreWriteError struct {
	Op  string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("appointment store write failed during %s: %v", e.Op, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

// ProjectionSyncError reports a degraded success: the appointment write
// landed but updating the lead's denormalized appointment fields failed.
// The caller should surface "booked, but lead record may be stale" rather
// than a hard failure.
type ProjectionSyncError struct {
	AppointmentID uint
	LeadID        uint
	Err           error
}

func (e *ProjectionSyncError) Error() string {
	return fmt.Sprintf("appointment %d saved but lead %d projection update failed: %v", e.AppointmentID, e.LeadID, e.Err)
}

func (e *ProjectionSyncError) Unwrap() error {
	return e.Err
}
