package transport

import (
	"context"

	"announcebot/internal/format"
)

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
	UpdateReady   UpdateKind = "ready"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
	// Self is set on UpdateReady: the bot's own identity.
	Self *Author
}

type Author struct {
	ID        string
	Username  string
	Tag       string
	AvatarURL string
	Bot       bool
}

type Message struct {
	ID        string
	ChannelID string
	GuildID   string // empty for direct messages
	Author    Author
	Content   string

	// ChannelMentions are the channel IDs the platform resolved from the
	// message text, in mention order.
	ChannelMentions []string
}

// Member is a guild member as seen at roster fetch time.
type Member struct {
	ID       string
	Username string
	Bot      bool
}

type MessageRef struct {
	ChannelID string
	MessageID string
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	// Self returns the bot's own user ID (empty until connected).
	Self() string

	Reply(ctx context.Context, to *Message, p format.Payload) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, p format.Payload) error
	SendChannel(ctx context.Context, channelID string, p format.Payload) (MessageRef, error)
	SendDirect(ctx context.Context, userID string, p format.Payload) error

	Members(ctx context.Context, guildID string) ([]Member, error)
}
