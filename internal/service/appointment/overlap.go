package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
)

var ErrInvalidDuration = errors.New("invalid appointment duration")

// ValidateDuration rejects non-positive durations and, when allowed is not
// empty, any duration outside it.
func ValidateDuration(minutes int, allowed []int) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: %d minutes", ErrInvalidDuration, minutes)
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, d := range allowed {
		if d == minutes {
			return nil
		}
	}
	return fmt.Errorf("%w: %d minutes, allowed %v", ErrInvalidDuration, minutes, allowed)
}

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints do not.
func Overlaps(a, b model.TimeSlot) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// FindConflicts returns the scheduled appointments of the candidate's doctor
// whose interval intersects the candidate's, in input order.
func FindConflicts(candidate *model.Appointment, existing []*model.Appointment) []*model.Appointment {
	slot := candidate.Slot()
	var conflicts []*model.Appointment
	for _, a := range existing {
		if a.ID == candidate.ID || a.DoctorID != candidate.DoctorID {
			continue
		}
		if a.Status != model.AppointmentStatusScheduled {
			continue
		}
		if Overlaps(slot, a.Slot()) {
			conflicts = append(conflicts, a)
		}
	}
	return conflicts
}

func conflictDetails(conflicts []*model.Appointment) model.ConflictDetails {
	details := model.ConflictDetails{
		AppointmentIDs: make([]uuid.UUID, 0, len(conflicts)),
		Slots:          make([]model.TimeSlot, 0, len(conflicts)),
	}
	for _, c := range conflicts {
		details.AppointmentIDs = append(details.AppointmentIDs, c.ID)
		details.Slots = append(details.Slots, c.Slot())
	}
	return details
}

// Checker runs the overlap test against the doctor's stored appointments.
type Checker struct {
	repo repository.AppointmentRepository
}

func NewChecker(repo repository.AppointmentRepository) *Checker {
	return &Checker{repo: repo}
}

// Check returns the scheduled appointments of doctorID that a candidate
// starting at start for duration minutes would clash with.
func (c *Checker) Check(ctx context.Context, doctorID uuid.UUID, start time.Time, duration int) ([]*model.Appointment, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidDuration, duration)
	}
	candidate := &model.Appointment{
		DoctorID:        doctorID,
		AppointmentDate: start,
		Duration:        duration,
		Status:          model.AppointmentStatusScheduled,
	}
	existing, err := c.repo.ListScheduledOverlapping(ctx, doctorID, start, candidate.End())
	if err != nil {
		return nil, fmt.Errorf("failed to list overlapping appointments: %w", err)
	}
	return FindConflicts(candidate, existing), nil
}
