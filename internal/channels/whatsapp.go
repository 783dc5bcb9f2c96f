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

const whatsappAPIBase = "https://graph.facebook.com/v19.0"

// whatsappEnvelope is the Cloud API webhook payload, reduced to text
// messages.
type whatsappEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseWhatsAppEnvelope maps a webhook body to Inbound messages. One
// envelope can batch several messages; non-text entries are skipped.
func ParseWhatsAppEnvelope(body []byte) ([]Inbound, error) {
	var envelope whatsappEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("channels: whatsapp: malformed envelope: %w", err)
	}

	var out []Inbound
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			names := map[string]string{}
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text.Body == "" {
					continue
				}
				ts := time.Time{}
				if sec, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil {
					ts = time.Unix(sec, 0)
				}
				out = append(out, Inbound{
					Channel:    ChannelWhatsApp,
					ExternalID: msg.From,
					ReplyTo:    msg.From,
					UserID:     msg.From,
					UserName:   names[msg.From],
					Text:       msg.Text.Body,
					Timestamp:  ts,
				})
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("channels: whatsapp: envelope has no text messages")
	}
	return out, nil
}

// WhatsApp sends replies through the Cloud API. Inbound flows through the
// webhook route on the HTTP server.
type WhatsApp struct {
	token       string
	phoneID     string
	verifyToken string
	baseURL     string
	http        *http.Client
}

// WhatsAppOpts holds parameters for creating a WhatsApp adapter.
type WhatsAppOpts struct {
	Token       string // Cloud API access token
	PhoneID     string // sending phone number id
	VerifyToken string // expected hub.verify_token on webhook verification
	BaseURL     string // defaults to the Graph API, injectable for tests
	Timeout     time.Duration
}

// NewWhatsApp creates a WhatsApp adapter.
func NewWhatsApp(opts WhatsAppOpts) (*WhatsApp, error) {
	if opts.Token == "" || opts.PhoneID == "" {
		return nil, fmt.Errorf("channels: whatsapp: token and phone id are required")
	}
	base := opts.BaseURL
	if base == "" {
		base = whatsappAPIBase
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WhatsApp{
		token:       opts.Token,
		phoneID:     opts.PhoneID,
		verifyToken: opts.VerifyToken,
		baseURL:     base,
		http:        &http.Client{Timeout: timeout},
	}, nil
}

// Channel implements Adapter.
func (w *WhatsApp) Channel() string { return ChannelWhatsApp }

// VerifyWebhook answers the subscription handshake: when the mode and
// token match it returns the challenge to echo back, otherwise ok=false.
func (w *WhatsApp) VerifyWebhook(mode, token, challenge string) (string, bool) {
	if mode != "subscribe" || token == "" || token != w.verifyToken {
		return "", false
	}
	return challenge, true
}

// Send implements Adapter via the messages endpoint.
func (w *WhatsApp) Send(ctx context.Context, msg Outbound) error {
	if msg.ReplyTo == "" {
		return fmt.Errorf("channels: whatsapp: no recipient")
	}
	payload, err := json.Marshal(map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                msg.ReplyTo,
		"type":              "text",
		"text":              map[string]string{"body": msg.Text},
	})
	if err != nil {
		return fmt.Errorf("channels: whatsapp: encode send: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("channels: whatsapp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.token)

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("channels: whatsapp: send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("channels: whatsapp: send returned %d", resp.StatusCode)
	}
	return nil
}
