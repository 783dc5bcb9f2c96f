// Package discord implements the channels Listener for Discord via the
// Gateway WebSocket. The sender's Discord user id is the channel identity.
package discord

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/winmachacker-tech/atlas-command-sub005/internal/channels"
)

// session abstracts the discordgo.Session methods we use, enabling test
// mocks.
type session interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	AddHandler(handler interface{}) func()
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSend(channelID, content, options...)
}
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}

// Adapter implements channels.Listener for Discord.
type Adapter struct {
	sess     session
	botToken string

	mu            sync.Mutex
	botUserID     string
	connected     bool
	closed        bool
	inbound       chan channels.Inbound
	cancelFunc    context.CancelFunc
	removeHandler func()
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken string
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	a := &Adapter{
		botToken: opts.BotToken,
		inbound:  make(chan channels.Inbound, 100),
	}
	if opts.Session != nil {
		a.sess = opts.Session
	}
	return a, nil
}

// Channel implements channels.Adapter.
func (a *Adapter) Channel() string { return channels.ChannelDiscord }

// Connect establishes the Gateway WebSocket connection.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuildMessages |
			discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
		a.sess = &realSession{s: dg}
	}

	// Ready fires on connect and reconnect; capture the bot user id there.
	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.botUserID = r.User.ID
		a.mu.Unlock()
		log.Printf("discord: connected as %s (ID: %s)", r.User.Username, r.User.ID)
	})
	a.sess.AddHandler(func(_ *discordgo.Session, d *discordgo.Disconnect) {
		log.Printf("discord: gateway disconnected, discordgo will auto-reconnect")
	})

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}

	a.connected = true
	return nil
}

// Listen returns the inbound message channel and registers the message
// handler. Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan channels.Inbound, error) {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return nil, fmt.Errorf("discord: not connected")
	}
	a.mu.Unlock()

	_, cancel := context.WithCancel(ctx)
	remove := a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessage(m)
	})

	a.mu.Lock()
	a.cancelFunc = cancel
	a.removeHandler = remove
	a.mu.Unlock()

	return a.inbound, nil
}

// Send implements channels.Adapter.
func (a *Adapter) Send(ctx context.Context, msg channels.Outbound) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("discord: not connected")
	}
	a.mu.Unlock()

	if msg.ReplyTo == "" {
		return fmt.Errorf("discord: no channel to reply to")
	}
	if _, err := a.sess.ChannelMessageSend(msg.ReplyTo, msg.Text); err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// Close shuts down the adapter and closes the inbound channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.removeHandler != nil {
		a.removeHandler()
	}
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	var err error
	if a.sess != nil {
		err = a.sess.Close()
	}
	close(a.inbound)
	return err
}

// BotUserID returns the bot's Discord user ID (available after Ready).
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// handleMessage converts a Gateway message event to an inbound message.
func (a *Adapter) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	a.mu.Lock()
	self := a.botUserID
	closed := a.closed
	a.mu.Unlock()
	if closed || m.Author.ID == self || m.Content == "" {
		return
	}

	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	a.inbound <- channels.Inbound{
		Channel:    channels.ChannelDiscord,
		ExternalID: m.Author.ID,
		ReplyTo:    m.ChannelID,
		UserID:     m.Author.ID,
		UserName:   m.Author.Username,
		Text:       m.Content,
		Timestamp:  ts,
	}
}
