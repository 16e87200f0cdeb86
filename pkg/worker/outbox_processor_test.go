package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/famalink/telemed-api/internal/model"
	"github.com/famalink/telemed-api/internal/repository/memory"
	"github.com/famalink/telemed-api/pkg/logger"
	"github.com/famalink/telemed-api/pkg/messaging"
	"github.com/famalink/telemed-api/pkg/metrics"
)

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	return m.Called(ctx, channel, message).Error(0)
}

func (m *mockBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	args := m.Called(ctx, channel)
	ch, _ := args.Get(0).(<-chan []byte)
	return ch, args.Error(1)
}

func (m *mockBroker) Close() error { return nil }

func seedEvent(t *testing.T, store *memory.Store) *model.Appointment {
	t.Helper()
	ctx := context.Background()
	doctorID := uuid.New()
	p := &model.Patient{DoctorID: doctorID, FirstName: "Awa", LastName: "Kone", Phone: "0701020304"}
	require.NoError(t, store.Patients().Create(ctx, p))

	a := &model.Appointment{
		ID: uuid.New(), DoctorID: doctorID, PatientID: p.ID,
		AppointmentDate: time.Date(2024, 2, 12, 10, 0, 0, 0, time.UTC),
		Duration:        30, Status: model.AppointmentStatusScheduled,
		Type: model.AppointmentTypeTeleconsultation,
	}
	event, err := model.NewAppointmentEvent(model.EventAppointmentCreated, a, "")
	require.NoError(t, err)
	require.NoError(t, store.Appointments().Create(ctx, a, event))
	return a
}

func config() OutboxProcessorConfig {
	return OutboxProcessorConfig{BatchSize: 10, PollInterval: time.Second, MaxAttempts: 2, Channel: "famalink.appointments"}
}

func TestOutboxProcessor_PublishesAndMarksProcessed(t *testing.T) {
	store := memory.NewStore()
	a := seedEvent(t, store)

	broker := messaging.NewLocalBroker(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := broker.Subscribe(ctx, "famalink.appointments")
	require.NoError(t, err)

	p, err := NewOutboxProcessor(store.Outbox(), broker, config(), logger.Nop(), metrics.New("test"))
	require.NoError(t, err)

	n, err := p.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var msg struct {
		Type    string                 `json:"type"`
		Payload model.AppointmentEvent `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(<-sub, &msg))
	assert.Equal(t, model.EventAppointmentCreated, msg.Type)
	assert.Equal(t, a.ID, msg.Payload.AppointmentID)

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusProcessed, events[0].Status)
}

func TestOutboxProcessor_ParksAfterMaxAttempts(t *testing.T) {
	store := memory.NewStore()
	seedEvent(t, store)

	broker := &mockBroker{}
	broker.On("Publish", mock.Anything, "famalink.appointments", mock.Anything).Return(errors.New("redis down"))

	p, err := NewOutboxProcessor(store.Outbox(), broker, config(), logger.Nop(), metrics.New("test"))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		n, err := p.ProcessBatch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	}

	events := store.OutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusFailed, events[0].Status)
	assert.Equal(t, 2, events[0].RetryCount)
	broker.AssertNumberOfCalls(t, "Publish", 2)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	broker.AssertNumberOfCalls(t, "Publish", 2)
}

func TestNewOutboxProcessor_RejectsBadConfig(t *testing.T) {
	_, err := NewOutboxProcessor(nil, nil, OutboxProcessorConfig{}, logger.Nop(), metrics.New("test"))
	assert.Error(t, err)
}
