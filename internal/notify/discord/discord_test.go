package discord

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/workbay/garagedesk/internal/notify"
)

// --- Mock Discord session ---

type mockSession struct {
	mu      sync.Mutex
	sent    []sentMessage
	sendErr error
}

type sentMessage struct {
	channelID string
	data      *discordgo.MessageSend
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, sentMessage{channelID: channelID, data: data})
	return &discordgo.Message{ID: "msg-1", ChannelID: channelID}, nil
}

func TestNew_RequiresBotToken(t *testing.T) {
	_, err := New(Opts{ChannelID: "123"})
	if err == nil || !strings.Contains(err.Error(), "bot token is required") {
		t.Errorf("err = %v", err)
	}
}

func TestNew_RequiresChannel(t *testing.T) {
	_, err := New(Opts{Session: &mockSession{}})
	if err == nil || !strings.Contains(err.Error(), "channel id is required") {
		t.Errorf("err = %v", err)
	}
}

func TestNew_WithBotToken(t *testing.T) {
	n, err := New(Opts{BotToken: "test-token", ChannelID: "123"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if n.sess == nil {
		t.Error("session should be created")
	}
}

func TestNotify_SendsEmbed(t *testing.T) {
	mock := &mockSession{}
	n, _ := New(Opts{ChannelID: "ch-workshop", Session: mock})
	evt := notify.Event{
		Title:  "Job card created: MH12AB1234",
		Body:   "Asha · Swift",
		Color:  notify.ColorSuccess,
		Fields: []notify.Field{{Name: "Status", Value: "pending", Short: true}},
	}
	if err := n.Notify(context.Background(), evt); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(mock.sent) != 1 || mock.sent[0].channelID != "ch-workshop" {
		t.Fatalf("sent = %+v", mock.sent)
	}
	data := mock.sent[0].data
	if data.Content != evt.Title || len(data.Embeds) != 1 {
		t.Fatalf("data = %+v", data)
	}
	embed := data.Embeds[0]
	if embed.Description != "Asha · Swift" || embed.Color != 0x36a64f {
		t.Errorf("embed = %+v", embed)
	}
	if len(embed.Fields) != 1 || !embed.Fields[0].Inline {
		t.Errorf("fields = %+v", embed.Fields)
	}
}

func TestNotify_SendError(t *testing.T) {
	mock := &mockSession{sendErr: errors.New("missing access")}
	n, _ := New(Opts{ChannelID: "ch", Session: mock})
	err := n.Notify(context.Background(), notify.Event{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "discord: send message") {
		t.Errorf("err = %v", err)
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"#36a64f", 0x36a64f},
		{"439FE0", 0x439fe0},
		{"#daa038", 0xdaa038},
		{"", 0},
		{"#zz", 0},
	}
	for _, tt := range tests {
		if got := parseHexColor(tt.in); got != tt.want {
			t.Errorf("parseHexColor(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}
