package sms

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeAPI struct {
	params *api.CreateMessageParams
	err    error
}

func (f *fakeAPI) CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &api.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioSender_Send(t *testing.T) {
	fake := &fakeAPI{}
	s := &TwilioSender{api: fake, from: "+15005550006"}

	require.NoError(t, s.Send(context.Background(), "+2250701020304", "Rendez-vous confirmé"))
	assert.Equal(t, "+2250701020304", *fake.params.To)
	assert.Equal(t, "+15005550006", *fake.params.From)
	assert.Equal(t, "Rendez-vous confirmé", *fake.params.Body)
}

func TestTwilioSender_Errors(t *testing.T) {
	s := &TwilioSender{api: &fakeAPI{err: errors.New("21211 invalid To")}, from: "+1"}
	assert.Error(t, s.Send(context.Background(), "x", "y"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, "x", "y"), context.Canceled)

	_, err := NewTwilioSender("", "", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
