// Package channels bridges chat platforms (Telegram, WhatsApp, Slack,
// Discord) to the dispatch loop.
package channels

import (
	"context"
	"fmt"
	"time"
)

// Channel names.
const (
	ChannelWeb      = "web"
	ChannelTelegram = "telegram"
	ChannelWhatsApp = "whatsapp"
	ChannelSlack    = "slack"
	ChannelDiscord  = "discord"
)

// Inbound is a message received from a platform, normalized for routing.
type Inbound struct {
	Channel    string    // e.g. "telegram"
	ExternalID string    // platform sender identifier used for channel linking
	ReplyTo    string    // platform address the reply is sent to
	UserID     string    // platform user id, for self-message filtering
	UserName   string    // human-readable sender name
	Text       string    // raw message text
	Timestamp  time.Time // when the message was sent
}

// Identity returns the channel identity key used for conversation memory
// and channel links, e.g. "telegram:8812".
func (m Inbound) Identity() string {
	return fmt.Sprintf("%s:%s", m.Channel, m.ExternalID)
}

// Outbound is a reply to be delivered to a platform.
type Outbound struct {
	ReplyTo string
	Text    string
}

// Adapter sends replies to one platform. Webhook-based channels need
// nothing more; the HTTP server feeds their inbound side.
type Adapter interface {
	Channel() string
	Send(ctx context.Context, msg Outbound) error
}

// Listener is a socket-based adapter that maintains its own connection and
// produces inbound messages (Slack Socket Mode, Discord gateway).
type Listener interface {
	Adapter

	// Connect establishes the platform connection.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages. The channel is closed
	// when the context is cancelled or the adapter is closed. Listen must
	// only be called after Connect.
	Listen(ctx context.Context) (<-chan Inbound, error)

	// Close gracefully shuts down the connection.
	Close() error

	// BotUserID returns the bot's own platform user id, for self-message
	// filtering. Only valid after Connect.
	BotUserID() string
}
