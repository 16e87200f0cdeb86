package encrypted

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository/memory"
	"github.com/famalink/telemed-api/pkg/security"
)

func strPtr(s string) *string { return &s }

func newRepo(t *testing.T) (*ConsultationRepository, *memory.Store) {
	t.Helper()
	enc, err := security.NewAESEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	store := memory.NewStore()
	return NewConsultationRepository(store.Consultations(), enc), store
}

func TestConsultationRepository_SealsClinicalText(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo(t)
	doctorID := uuid.New()

	c := &model.Consultation{
		DoctorID:         doctorID,
		PatientID:        uuid.New(),
		ConsultationDate: time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC),
		Symptoms:         strPtr("Fièvre depuis trois jours"),
		ConsultationType: model.ConsultationTypeVideo,
	}
	require.NoError(t, repo.Create(ctx, c))
	require.NotEqual(t, uuid.Nil, c.ID)
	assert.Equal(t, "Fièvre depuis trois jours", *c.Symptoms, "caller keeps plain text")

	raw, err := store.Consultations().Get(ctx, doctorID, c.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(*raw.Symptoms, "enc:v1:"))

	got, err := repo.Get(ctx, doctorID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Fièvre depuis trois jours", *got.Symptoms)
	assert.Nil(t, got.Diagnosis)

	saved, err := repo.SaveNotes(ctx, doctorID, c.ID, &model.SaveConsultationNotesRequest{
		Diagnosis: strPtr("Paludisme simple"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Paludisme simple", *saved.Diagnosis)
	assert.Equal(t, "Fièvre depuis trois jours", *saved.Symptoms)

	raw, err = store.Consultations().Get(ctx, doctorID, c.ID)
	require.NoError(t, err)
	assert.NotContains(t, *raw.Diagnosis, "Paludisme")

	list, err := repo.ListForPatient(ctx, doctorID, c.PatientID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Paludisme simple", *list[0].Diagnosis)
}

func TestConsultationRepository_ReadsPlainRows(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo(t)
	doctorID := uuid.New()

	c := &model.Consultation{
		DoctorID:         doctorID,
		PatientID:        uuid.New(),
		ConsultationDate: time.Now(),
		Notes:            strPtr("saisi avant chiffrement"),
		ConsultationType: model.ConsultationTypeAudio,
	}
	require.NoError(t, store.Consultations().Create(ctx, c))

	items, err := repo.List(ctx, doctorID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "saisi avant chiffrement", *items[0].Notes)
}
