package video

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoom_SendsRoomProperties(t *testing.T) {
	fixed := time.Date(2024, 2, 12, 10, 0, 0, 0, time.UTC)

	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rooms", r.URL.Path)
		assert.Equal(t, "Bearer key-123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"url":"https://famalink.daily.co/famalink-consultation-c1","name":"famalink-consultation-c1"}`))
	}))
	defer srv.Close()

	client := NewDailyClient(Config{BaseURL: srv.URL, APIKey: "key-123"})
	client.now = func() time.Time { return fixed }

	url, err := client.CreateRoom(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "https://famalink.daily.co/famalink-consultation-c1", url)

	assert.Equal(t, "famalink-consultation-c1", got["name"])
	props := got["properties"].(map[string]interface{})
	assert.Equal(t, float64(fixed.Add(time.Hour).Unix()), props["exp"])
	assert.Equal(t, true, props["enable_screenshare"])
	assert.Equal(t, true, props["enable_chat"])
	assert.Equal(t, false, props["start_video_off"])
	assert.Equal(t, false, props["start_audio_off"])
	assert.Equal(t, "fr", props["lang"])
}

func TestCreateRoom_ProviderError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid-request-error","info":"a room named famalink-consultation-c1 already exists"}`))
	}))
	defer srv.Close()

	client := NewDailyClient(Config{BaseURL: srv.URL, APIKey: "key"})
	_, err := client.CreateRoom(context.Background(), "c1")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Daily API error: a room named famalink-consultation-c1 already exists", err.Error())
	assert.Equal(t, 1, calls, "room creation is never retried")
}

func TestCreateRoom_RequiresKey(t *testing.T) {
	_, err := NewDailyClient(Config{}).CreateRoom(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
