package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// telegramUpdate is the Bot API webhook envelope, reduced to what the
// router consumes.
type telegramUpdate struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		MessageID int64 `json:"message_id"`
		From      *struct {
			ID        int64  `json:"id"`
			IsBot     bool   `json:"is_bot"`
			FirstName string `json:"first_name"`
			Username  string `json:"username"`
		} `json:"from"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Date int64  `json:"date"`
		Text string `json:"text"`
	} `json:"message"`
}

// ParseTelegramUpdate maps a webhook body to an Inbound message. Non-text
// updates (joins, stickers, edits) are rejected at this boundary.
func ParseTelegramUpdate(body []byte) (Inbound, error) {
	var update telegramUpdate
	if err := json.Unmarshal(body, &update); err != nil {
		return Inbound{}, fmt.Errorf("channels: telegram: malformed update: %w", err)
	}
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return Inbound{}, fmt.Errorf("channels: telegram: update %d has no text message", update.UpdateID)
	}
	if msg.From != nil && msg.From.IsBot {
		return Inbound{}, fmt.Errorf("channels: telegram: update %d is from a bot", update.UpdateID)
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	in := Inbound{
		Channel:    ChannelTelegram,
		ExternalID: chatID,
		ReplyTo:    chatID,
		Text:       msg.Text,
		Timestamp:  time.Unix(msg.Date, 0),
	}
	if msg.From != nil {
		in.UserID = strconv.FormatInt(msg.From.ID, 10)
		in.UserName = msg.From.Username
		if in.UserName == "" {
			in.UserName = msg.From.FirstName
		}
	}
	return in, nil
}

// Telegram sends replies through the Bot API. Inbound flows through the
// webhook route on the HTTP server, not this type.
type Telegram struct {
	token   string
	baseURL string
	http    *http.Client
}

// TelegramOpts holds parameters for creating a Telegram adapter.
type TelegramOpts struct {
	Token   string
	BaseURL string        // defaults to the public Bot API, injectable for tests
	Timeout time.Duration // defaults to 10s
}

// NewTelegram creates a Telegram adapter.
func NewTelegram(opts TelegramOpts) (*Telegram, error) {
	if opts.Token == "" {
		return nil, fmt.Errorf("channels: telegram: bot token is required")
	}
	base := opts.BaseURL
	if base == "" {
		base = telegramAPIBase
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Telegram{
		token:   opts.Token,
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Channel implements Adapter.
func (t *Telegram) Channel() string { return ChannelTelegram }

// Send implements Adapter via the sendMessage method.
func (t *Telegram) Send(ctx context.Context, msg Outbound) error {
	if msg.ReplyTo == "" {
		return fmt.Errorf("channels: telegram: no chat to reply to")
	}
	payload, err := json.Marshal(map[string]string{
		"chat_id": msg.ReplyTo,
		"text":    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("channels: telegram: encode send: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("channels: telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("channels: telegram: send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("channels: telegram: send returned %d", resp.StatusCode)
	}
	return nil
}
