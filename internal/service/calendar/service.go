package calendar

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
	apperrors "github.com/famalink/telemed-api/pkg/errors"
)

type Service interface {
	Week(ctx context.Context, doctorID uuid.UUID, ref time.Time, nav Navigation) (*model.WeekView, error)
	Day(ctx context.Context, doctorID uuid.UUID, date time.Time) (*model.DayView, error)
	Today(ctx context.Context, doctorID uuid.UUID) ([]*model.AppointmentWithPatient, error)
	// Invalidate drops cached weeks of a doctor after their appointments change.
	Invalidate(doctorID uuid.UUID)
	Grid() *Grid
}

type service struct {
	grid         *Grid
	appointments repository.AppointmentRepository
	weeks        *cache.Cache
	now          func() time.Time

	// gens counts invalidations per doctor. A week read that started before
	// an invalidation must not be cached.
	mu   sync.Mutex
	gens map[uuid.UUID]uint64
}

func NewService(grid *Grid, appointments repository.AppointmentRepository, ttl time.Duration, now func() time.Time) Service {
	if now == nil {
		now = time.Now
	}
	return &service{
		grid:         grid,
		appointments: appointments,
		weeks:        cache.New(ttl, 2*ttl),
		now:          now,
		gens:         make(map[uuid.UUID]uint64),
	}
}

func (s *service) Grid() *Grid {
	return s.grid
}

func weekKey(doctorID uuid.UUID, weekStart time.Time) string {
	return fmt.Sprintf("%s:%s", doctorID, weekStart.Format("2006-01-02"))
}

func (s *service) Week(ctx context.Context, doctorID uuid.UUID, ref time.Time, nav Navigation) (*model.WeekView, error) {
	n := NewNavigator(s.grid, ref, s.now)
	weekStart := n.Apply(nav)

	key := weekKey(doctorID, weekStart)
	if cached, ok := s.weeks.Get(key); ok {
		return cached.(*model.WeekView), nil
	}

	gen := s.generation(doctorID)
	start, end := s.grid.WeekRange(weekStart)
	appts, err := s.appointments.ListForDoctorInRange(ctx, doctorID, start, end)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	view := s.grid.Project(weekStart, appts).WeekView()
	s.store(doctorID, gen, key, view)
	return view, nil
}

func (s *service) generation(doctorID uuid.UUID) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[doctorID]
}

// store caches view unless the doctor was invalidated after gen was read.
func (s *service) store(doctorID uuid.UUID, gen uint64, key string, view *model.WeekView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[doctorID] != gen {
		return
	}
	s.weeks.SetDefault(key, view)
}

func (s *service) Day(ctx context.Context, doctorID uuid.UUID, date time.Time) (*model.DayView, error) {
	if date.IsZero() {
		date = s.now()
	}
	start, end := s.grid.DayRange(date)
	appts, err := s.appointments.ListForDoctorInRange(ctx, doctorID, start, end)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return s.grid.DayView(date, appts), nil
}

func (s *service) Today(ctx context.Context, doctorID uuid.UUID) ([]*model.AppointmentWithPatient, error) {
	start, end := s.grid.DayRange(s.now())
	appts, err := s.appointments.ListForDoctorInRange(ctx, doctorID, start, end)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return appts, nil
}

func (s *service) Invalidate(doctorID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[doctorID]++

	prefix := doctorID.String() + ":"
	dropped := 0
	for key := range s.weeks.Items() {
		if strings.HasPrefix(key, prefix) {
			s.weeks.Delete(key)
			dropped++
		}
	}
	if dropped > 0 {
		log.Debug().Str("doctor_id", doctorID.String()).Int("weeks", dropped).Msg("Invalidated calendar cache")
	}
}
