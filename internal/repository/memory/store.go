// Package memory keeps every repository in process memory. It backs the
// "memory" storage driver used for local runs and service tests, and mirrors
// the Postgres constraints: overlapping scheduled appointments are rejected
// with repository.ErrOverlap and emails are unique.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository"
)

type Store struct {
	mu            sync.RWMutex
	authUsers     map[uuid.UUID]*model.AuthUser
	doctors       map[uuid.UUID]*model.Doctor
	settings      map[uuid.UUID]*model.DoctorSettings
	patients      map[uuid.UUID]*model.Patient
	appointments  map[uuid.UUID]*model.Appointment
	consultations map[uuid.UUID]*model.Consultation
	outbox        []*model.OutboxEvent
	claimed       map[uuid.UUID]bool
}

func NewStore() *Store {
	return &Store{
		authUsers:     make(map[uuid.UUID]*model.AuthUser),
		doctors:       make(map[uuid.UUID]*model.Doctor),
		settings:      make(map[uuid.UUID]*model.DoctorSettings),
		patients:      make(map[uuid.UUID]*model.Patient),
		appointments:  make(map[uuid.UUID]*model.Appointment),
		consultations: make(map[uuid.UUID]*model.Consultation),
		claimed:       make(map[uuid.UUID]bool),
	}
}

func (s *Store) AuthUsers() repository.AuthUserRepository         { return authUsers{s} }
func (s *Store) Doctors() repository.DoctorRepository             { return doctors{s} }
func (s *Store) Patients() repository.PatientRepository           { return patients{s} }
func (s *Store) Appointments() repository.AppointmentRepository   { return appointments{s} }
func (s *Store) Consultations() repository.ConsultationRepository { return consultations{s} }
func (s *Store) Outbox() repository.OutboxRepository              { return outbox{s} }

// OutboxEvents returns a snapshot of every recorded event.
func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.OutboxEvent, len(s.outbox))
	for i, e := range s.outbox {
		out[i] = *e
	}
	return out
}

func now() time.Time {
	return time.Now().UTC()
}

// auth users

type authUsers struct{ s *Store }

func (r authUsers) Create(_ context.Context, user *model.AuthUser) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user.Email = strings.ToLower(user.Email)
	for _, u := range r.s.authUsers {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = now()
	cp := *user
	r.s.authUsers[user.ID] = &cp
	return nil
}

func (r authUsers) GetByEmail(_ context.Context, email string) (*model.AuthUser, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	email = strings.ToLower(email)
	for _, u := range r.s.authUsers {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r authUsers) UpdateEmail(_ context.Context, id uuid.UUID, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email = strings.ToLower(email)
	u, ok := r.s.authUsers[id]
	if !ok {
		return repository.ErrNotFound
	}
	for otherID, other := range r.s.authUsers {
		if otherID != id && other.Email == email {
			return repository.ErrDuplicate
		}
	}
	u.Email = email
	return nil
}

func (r authUsers) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.authUsers[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.authUsers, id)
	return nil
}

// doctors

type doctors struct{ s *Store }

func (r doctors) Create(_ context.Context, doctor *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	if _, exists := r.s.doctors[doctor.ID]; exists {
		return repository.ErrDuplicate
	}
	doctor.Email = strings.ToLower(doctor.Email)
	doctor.CreatedAt = now()
	cp := *doctor
	r.s.doctors[doctor.ID] = &cp
	return nil
}

func (r doctors) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r doctors) Update(_ context.Context, doctor *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.doctors[doctor.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cp := *doctor
	cp.Email = strings.ToLower(cp.Email)
	cp.CreatedAt = existing.CreatedAt
	r.s.doctors[doctor.ID] = &cp
	return nil
}

func (r doctors) GetSettings(_ context.Context, doctorID uuid.UUID) (*model.DoctorSettings, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, ok := r.s.settings[doctorID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (r doctors) UpsertSettings(_ context.Context, settings *model.DoctorSettings) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	settings.UpdatedAt = now()
	cp := *settings
	r.s.settings[settings.DoctorID] = &cp
	return nil
}

// patients

type patients struct{ s *Store }

func (r patients) Create(_ context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.CreatedAt = now()
	cp := *patient
	r.s.patients[patient.ID] = &cp
	return nil
}

func (r patients) get(doctorID, id uuid.UUID) (*model.Patient, bool) {
	p, ok := r.s.patients[id]
	if !ok || p.DoctorID != doctorID {
		return nil, false
	}
	return p, true
}

func (r patients) Get(_ context.Context, doctorID, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.get(doctorID, id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r patients) Update(_ context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.get(patient.DoctorID, patient.ID)
	if !ok {
		return repository.ErrNotFound
	}
	cp := *patient
	cp.CreatedAt = existing.CreatedAt
	r.s.patients[patient.ID] = &cp
	return nil
}

func (r patients) List(_ context.Context, doctorID uuid.UUID, filter model.PatientFilter) ([]*model.PatientListItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	var items []*model.PatientListItem
	for _, p := range r.s.patients {
		if p.DoctorID != doctorID {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.FirstName), search) &&
			!strings.Contains(strings.ToLower(p.LastName), search) &&
			!strings.Contains(strings.ToLower(p.Phone), search) {
			continue
		}

		item := &model.PatientListItem{Patient: *p}
		for _, c := range r.s.consultations {
			if c.PatientID == p.ID {
				item.ConsultationCount++
			}
		}
		for _, a := range r.s.appointments {
			if a.PatientID == p.ID && (item.LastAppointment == nil || a.AppointmentDate.After(*item.LastAppointment)) {
				at := a.AppointmentDate
				item.LastAppointment = &at
			}
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].LastName != items[j].LastName {
			return items[i].LastName < items[j].LastName
		}
		return items[i].FirstName < items[j].FirstName
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(items) {
			return []*model.PatientListItem{}, nil
		}
		items = items[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(items) {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (r patients) Count(_ context.Context, doctorID uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, p := range r.s.patients {
		if p.DoctorID == doctorID {
			n++
		}
	}
	return n, nil
}

func (r patients) Delete(_ context.Context, doctorID, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.get(doctorID, id); !ok {
		return repository.ErrNotFound
	}
	for _, a := range r.s.appointments {
		if a.PatientID == id && a.Status == model.AppointmentStatusScheduled {
			return repository.ErrPatientHasScheduled
		}
	}
	for cid, c := range r.s.consultations {
		if c.PatientID == id {
			delete(r.s.consultations, cid)
		}
	}
	for aid, a := range r.s.appointments {
		if a.PatientID == id {
			delete(r.s.appointments, aid)
		}
	}
	delete(r.s.patients, id)
	return nil
}

// appointments

type appointments struct{ s *Store }

func (r appointments) overlaps(candidate *model.Appointment) bool {
	if candidate.Status != model.AppointmentStatusScheduled {
		return false
	}
	for _, a := range r.s.appointments {
		if a.ID == candidate.ID || a.DoctorID != candidate.DoctorID || a.Status != model.AppointmentStatusScheduled {
			continue
		}
		if a.AppointmentDate.Before(candidate.End()) && candidate.AppointmentDate.Before(a.End()) {
			return true
		}
	}
	return false
}

func (r appointments) Create(_ context.Context, appointment *model.Appointment, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.patients[appointment.PatientID]; !ok {
		return repository.ErrNotFound
	}
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	if r.overlaps(appointment) {
		return repository.ErrOverlap
	}
	appointment.CreatedAt = now()
	cp := *appointment
	r.s.appointments[appointment.ID] = &cp
	r.s.appendEvent(event)
	return nil
}

func (r appointments) Get(_ context.Context, doctorID, id uuid.UUID) (*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.appointments[id]
	if !ok || a.DoctorID != doctorID {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r appointments) withPatient(a *model.Appointment) *model.AppointmentWithPatient {
	out := &model.AppointmentWithPatient{Appointment: *a}
	if p, ok := r.s.patients[a.PatientID]; ok {
		out.Patient = p.Summary()
	}
	return out
}

func (r appointments) ListForDoctorInRange(_ context.Context, doctorID uuid.UUID, start, end time.Time) ([]*model.AppointmentWithPatient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.AppointmentWithPatient
	for _, a := range r.s.appointments {
		if a.DoctorID != doctorID || a.AppointmentDate.Before(start) || a.AppointmentDate.After(end) {
			continue
		}
		out = append(out, r.withPatient(a))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AppointmentDate.Before(out[j].AppointmentDate)
	})
	return out, nil
}

func (r appointments) ListScheduledOverlapping(_ context.Context, doctorID uuid.UUID, start, end time.Time) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Appointment
	for _, a := range r.s.appointments {
		if a.DoctorID != doctorID || a.Status != model.AppointmentStatusScheduled {
			continue
		}
		if a.AppointmentDate.Before(end) && start.Before(a.End()) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AppointmentDate.Before(out[j].AppointmentDate)
	})
	return out, nil
}

func (r appointments) ListForPatient(_ context.Context, doctorID, patientID uuid.UUID) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Appointment
	for _, a := range r.s.appointments {
		if a.DoctorID == doctorID && a.PatientID == patientID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AppointmentDate.After(out[j].AppointmentDate)
	})
	return out, nil
}

func (r appointments) UpdateStatus(_ context.Context, doctorID, id uuid.UUID, from, to model.AppointmentStatus, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.appointments[id]
	if !ok || a.DoctorID != doctorID {
		return repository.ErrNotFound
	}
	if a.Status != from {
		return repository.ErrStatusChanged
	}
	a.Status = to
	r.s.appendEvent(event)
	return nil
}

func (r appointments) CountByStatus(_ context.Context, doctorID uuid.UUID) (map[model.AppointmentStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[model.AppointmentStatus]int)
	for _, a := range r.s.appointments {
		if a.DoctorID == doctorID {
			counts[a.Status]++
		}
	}
	return counts, nil
}

// consultations

type consultations struct{ s *Store }

func (r consultations) Create(_ context.Context, consultation *model.Consultation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if consultation.AppointmentID != nil {
		for _, c := range r.s.consultations {
			if c.AppointmentID != nil && *c.AppointmentID == *consultation.AppointmentID {
				return repository.ErrDuplicate
			}
		}
	}
	if consultation.ID == uuid.Nil {
		consultation.ID = uuid.New()
	}
	ts := now()
	consultation.CreatedAt = ts
	consultation.UpdatedAt = ts
	cp := *consultation
	r.s.consultations[consultation.ID] = &cp
	return nil
}

func (r consultations) withPatient(c *model.Consultation) *model.ConsultationWithPatient {
	out := &model.ConsultationWithPatient{Consultation: *c}
	if p, ok := r.s.patients[c.PatientID]; ok {
		out.Patient = p.Summary()
	}
	return out
}

func (r consultations) Get(_ context.Context, doctorID, id uuid.UUID) (*model.ConsultationWithPatient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.consultations[id]
	if !ok || c.DoctorID != doctorID {
		return nil, repository.ErrNotFound
	}
	return r.withPatient(c), nil
}

func (r consultations) GetByAppointment(_ context.Context, doctorID, appointmentID uuid.UUID) (*model.Consultation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, c := range r.s.consultations {
		if c.DoctorID == doctorID && c.AppointmentID != nil && *c.AppointmentID == appointmentID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r consultations) List(_ context.Context, doctorID uuid.UUID) ([]*model.ConsultationWithPatient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.ConsultationWithPatient
	for _, c := range r.s.consultations {
		if c.DoctorID == doctorID {
			out = append(out, r.withPatient(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ConsultationDate.After(out[j].ConsultationDate)
	})
	return out, nil
}

func (r consultations) ListForPatient(_ context.Context, doctorID, patientID uuid.UUID) ([]*model.Consultation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.Consultation
	for _, c := range r.s.consultations {
		if c.DoctorID == doctorID && c.PatientID == patientID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ConsultationDate.After(out[j].ConsultationDate)
	})
	return out, nil
}

func (r consultations) SaveNotes(_ context.Context, doctorID, id uuid.UUID, notes *model.SaveConsultationNotesRequest) (*model.Consultation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.consultations[id]
	if !ok || c.DoctorID != doctorID {
		return nil, repository.ErrNotFound
	}
	if notes.Symptoms != nil {
		c.Symptoms = notes.Symptoms
	}
	if notes.Diagnosis != nil {
		c.Diagnosis = notes.Diagnosis
	}
	if notes.Prescription != nil {
		c.Prescription = notes.Prescription
	}
	if notes.Notes != nil {
		c.Notes = notes.Notes
	}
	c.UpdatedAt = now()
	cp := *c
	return &cp, nil
}

func (r consultations) SetVideoRoomURL(_ context.Context, doctorID, id uuid.UUID, url string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.consultations[id]
	if !ok || c.DoctorID != doctorID {
		return repository.ErrNotFound
	}
	c.VideoRoomURL = &url
	c.UpdatedAt = now()
	return nil
}

// outbox

type outbox struct{ s *Store }

func (s *Store) appendEvent(event *model.OutboxEvent) {
	if event == nil {
		return
	}
	event.CreatedAt = now()
	cp := *event
	s.outbox = append(s.outbox, &cp)
}

func (r outbox) ClaimPending(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*model.OutboxEvent
	for _, e := range r.s.outbox {
		if len(out) >= limit {
			break
		}
		if e.Status != model.OutboxStatusPending || r.s.claimed[e.ID] {
			continue
		}
		r.s.claimed[e.ID] = true
		e.RetryCount++
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (r outbox) find(id uuid.UUID) *model.OutboxEvent {
	for _, e := range r.s.outbox {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (r outbox) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e := r.find(id)
	if e == nil {
		return repository.ErrNotFound
	}
	ts := now()
	e.Status = model.OutboxStatusProcessed
	e.ProcessedAt = &ts
	delete(r.s.claimed, id)
	return nil
}

func (r outbox) MarkFailed(_ context.Context, id uuid.UUID, reason string, final bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e := r.find(id)
	if e == nil {
		return repository.ErrNotFound
	}
	e.ErrorMessage = &reason
	if final {
		e.Status = model.OutboxStatusFailed
	}
	delete(r.s.claimed, id)
	return nil
}

func (r outbox) CountPending(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusPending {
			n++
		}
	}
	return n, nil
}

func (r outbox) DeleteProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.outbox[:0]
	var deleted int64
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.s.outbox = kept
	return deleted, nil
}
