// Package discord posts notify events to a Discord channel over the REST API.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/workbay/garagedesk/internal/notify"
)

// session abstracts the discordgo.Session method we use, enabling test mocks.
type session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts events as embeds.
type Notifier struct {
	sess      session
	channelID string
}

// Opts holds parameters for creating a Discord Notifier.
type Opts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of a real connection.
	Session session
}

// New creates a Discord Notifier. No gateway connection is opened; messages
// go out over REST.
func New(opts Opts) (*Notifier, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}
	sess := opts.Session
	if sess == nil {
		s, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		sess = s
	}
	return &Notifier{sess: sess, channelID: opts.ChannelID}, nil
}

// Notify posts evt to the configured channel.
func (n *Notifier) Notify(ctx context.Context, evt notify.Event) error {
	if _, err := n.sess.ChannelMessageSendComplex(n.channelID, buildMessageSend(evt), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

func buildMessageSend(evt notify.Event) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content: evt.Title,
		Embeds:  []*discordgo.MessageEmbed{eventToEmbed(evt)},
	}
}

// eventToEmbed converts an Event to a Discord Embed.
func eventToEmbed(evt notify.Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       evt.Title,
		Description: evt.Body,
		URL:         evt.URL,
	}
	if evt.Color != "" {
		embed.Color = parseHexColor(evt.Color)
	}
	for _, f := range evt.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return embed
}

// parseHexColor converts "#36a64f" to its integer value. Invalid digits are
// skipped.
func parseHexColor(hex string) int {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	color := 0
	for _, c := range hex {
		switch {
		case c >= '0' && c <= '9':
			color = color<<4 | int(c-'0')
		case c >= 'a' && c <= 'f':
			color = color<<4 | int(c-'a'+10)
		case c >= 'A' && c <= 'F':
			color = color<<4 | int(c-'A'+10)
		}
	}
	return color
}
