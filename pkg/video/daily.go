// Package video creates consultation rooms on Daily.co.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/famalink/telemed-api/pkg/circuitbreaker"
)

// RoomCreator is the video provider seen by the consultation service.
type RoomCreator interface {
	CreateRoom(ctx context.Context, consultationID string) (string, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	RoomPrefix string
	RoomTTL    time.Duration
	Language   string
	Timeout    time.Duration
}

// APIError is a non-2xx answer from Daily.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return "Daily API error: " + e.Message
}

var ErrNotConfigured = errors.New("Daily API key is not configured")

type roomProperties struct {
	Exp               int64  `json:"exp"`
	EnableScreenshare bool   `json:"enable_screenshare"`
	EnableChat        bool   `json:"enable_chat"`
	StartVideoOff     bool   `json:"start_video_off"`
	StartAudioOff     bool   `json:"start_audio_off"`
	Lang              string `json:"lang"`
}

type createRoomRequest struct {
	Name       string         `json:"name"`
	Properties roomProperties `json:"properties"`
}

type createRoomResponse struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

type errorResponse struct {
	Error string `json:"error"`
	Info  string `json:"info"`
}

type DailyClient struct {
	cfg     Config
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	now     func() time.Time
}

func NewDailyClient(cfg Config) *DailyClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.daily.co/v1"
	}
	if cfg.RoomPrefix == "" {
		cfg.RoomPrefix = "famalink-consultation-"
	}
	if cfg.RoomTTL <= 0 {
		cfg.RoomTTL = time.Hour
	}
	if cfg.Language == "" {
		cfg.Language = "fr"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &DailyClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "daily",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
		now: time.Now,
	}
}

// CreateRoom creates a room that expires after RoomTTL and returns its URL.
// Room creation is not idempotent on Daily's side, so failures are not retried.
func (d *DailyClient) CreateRoom(ctx context.Context, consultationID string) (string, error) {
	if d.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(createRoomRequest{
		Name: d.cfg.RoomPrefix + consultationID,
		Properties: roomProperties{
			Exp:               d.now().Add(d.cfg.RoomTTL).Unix(),
			EnableScreenshare: true,
			EnableChat:        true,
			Lang:              d.cfg.Language,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode room request: %w", err)
	}

	var roomURL string
	err = d.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(d.cfg.BaseURL, "/")+"/rooms", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)

		resp, err := d.http.Do(req)
		if err != nil {
			return fmt.Errorf("Daily API error: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("failed to read Daily response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return decodeAPIError(resp.StatusCode, raw)
		}

		var room createRoomResponse
		if err := json.Unmarshal(raw, &room); err != nil {
			return fmt.Errorf("failed to decode Daily response: %w", err)
		}
		if room.URL == "" {
			return &APIError{StatusCode: resp.StatusCode, Message: "response has no room url"}
		}
		roomURL = room.URL
		return nil
	})
	if err != nil {
		return "", err
	}
	return roomURL, nil
}

func decodeAPIError(status int, raw []byte) error {
	var e errorResponse
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &e) == nil {
		switch {
		case e.Info != "":
			msg = e.Info
		case e.Error != "":
			msg = e.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}
