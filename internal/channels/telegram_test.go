package channels

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseTelegramUpdate(t *testing.T) {
	body := `{
		"update_id": 7001,
		"message": {
			"message_id": 42,
			"from": {"id": 8812, "is_bot": false, "first_name": "Marcus", "username": "mjohnson"},
			"chat": {"id": 8812},
			"date": 1736500000,
			"text": "delivered"
		}
	}`

	in, err := ParseTelegramUpdate([]byte(body))
	if err != nil {
		t.Fatalf("ParseTelegramUpdate: %v", err)
	}
	if in.Channel != ChannelTelegram || in.ExternalID != "8812" || in.ReplyTo != "8812" {
		t.Errorf("inbound = %+v", in)
	}
	if in.UserName != "mjohnson" || in.Text != "delivered" {
		t.Errorf("inbound = %+v", in)
	}
	if in.Identity() != "telegram:8812" {
		t.Errorf("identity = %q", in.Identity())
	}
}

func TestParseTelegramUpdate_Rejects(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"update_id":`},
		{"no message", `{"update_id": 1}`},
		{"no text", `{"update_id": 1, "message": {"chat": {"id": 5}}}`},
		{"bot sender", `{"update_id": 1, "message": {"from": {"id": 2, "is_bot": true}, "chat": {"id": 5}, "text": "hi"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseTelegramUpdate([]byte(tc.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	tg, err := NewTelegram(TelegramOpts{Token: "test-token", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewTelegram: %v", err)
	}
	if err := tg.Send(context.Background(), Outbound{ReplyTo: "8812", Text: "On it."}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if !strings.Contains(gotPath, "bottest-token/sendMessage") {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["chat_id"] != "8812" || gotBody["text"] != "On it." {
		t.Errorf("body = %v", gotBody)
	}
}

func TestTelegramSend_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tg, _ := NewTelegram(TelegramOpts{Token: "t", BaseURL: srv.URL})
	if err := tg.Send(context.Background(), Outbound{ReplyTo: "1", Text: "x"}); err == nil {
		t.Error("expected error on non-200")
	}
}
