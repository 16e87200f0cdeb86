// Package chat opens Stream chat channels for text consultations.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	stream "github.com/GetStream/stream-chat-go/v5"
)

const ChannelType = "messaging"

var ErrNotConfigured = errors.New("Stream chat credentials are not configured")

type Member struct {
	ID   string
	Name string
	Role string
}

type Session struct {
	ChannelType string
	ChannelID   string
	UserID      string
	Token       string
	ExpiresAt   time.Time
}

// Provider opens a channel between owner and the other members and returns a
// token for owner.
type Provider interface {
	OpenSession(ctx context.Context, channelID string, owner Member, others ...Member) (*Session, error)
}

type StreamProvider struct {
	client   *stream.Client
	tokenTTL time.Duration
	now      func() time.Time
}

func NewStreamProvider(apiKey, apiSecret string, tokenTTL time.Duration) (*StreamProvider, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, ErrNotConfigured
	}
	client, err := stream.NewClient(apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create Stream client: %w", err)
	}
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &StreamProvider{client: client, tokenTTL: tokenTTL, now: time.Now}, nil
}

func (p *StreamProvider) OpenSession(ctx context.Context, channelID string, owner Member, others ...Member) (*Session, error) {
	users := make([]*stream.User, 0, len(others)+1)
	memberIDs := make([]string, 0, len(others)+1)
	for _, m := range append([]Member{owner}, others...) {
		users = append(users, &stream.User{ID: m.ID, Name: m.Name})
		memberIDs = append(memberIDs, m.ID)
	}

	if _, err := p.client.UpsertUsers(ctx, users...); err != nil {
		return nil, fmt.Errorf("failed to upsert chat users: %w", err)
	}
	if _, err := p.client.CreateChannelWithMembers(ctx, ChannelType, channelID, owner.ID, memberIDs...); err != nil {
		return nil, fmt.Errorf("failed to create chat channel: %w", err)
	}

	expires := p.now().Add(p.tokenTTL)
	token, err := p.client.CreateToken(owner.ID, expires)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat token: %w", err)
	}

	return &Session{
		ChannelType: ChannelType,
		ChannelID:   channelID,
		UserID:      owner.ID,
		Token:       token,
		ExpiresAt:   expires,
	}, nil
}

// Disabled is the Provider used when Stream is not configured.
type Disabled struct{}

func (Disabled) OpenSession(context.Context, string, Member, ...Member) (*Session, error) {
	return nil, ErrNotConfigured
}
