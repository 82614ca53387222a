// Package slack posts notify events to a Slack channel with the Web API.
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
	"github.com/workbay/garagedesk/internal/notify"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier posts events as message attachments.
type Notifier struct {
	client    slackClient
	channelID string
}

// Opts holds parameters for creating a Slack Notifier.
type Opts struct {
	BotToken  string // xoxb-... bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel id is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &Notifier{client: client, channelID: opts.ChannelID}, nil
}

// Notify posts evt to the configured channel.
func (n *Notifier) Notify(ctx context.Context, evt notify.Event) error {
	if _, _, err := n.client.PostMessageContext(ctx, n.channelID, buildMessageOptions(evt)...); err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

func buildMessageOptions(evt notify.Event) []slackapi.MsgOption {
	return []slackapi.MsgOption{
		slackapi.MsgOptionText(evt.Title, false),
		slackapi.MsgOptionAttachments(eventToAttachment(evt)),
	}
}

// eventToAttachment converts an Event to a Slack Attachment.
func eventToAttachment(evt notify.Event) slackapi.Attachment {
	att := slackapi.Attachment{
		Title:     evt.Title,
		TitleLink: evt.URL,
		Text:      evt.Body,
		Color:     evt.Color,
		Fallback:  evt.Text(),
	}
	for _, f := range evt.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}
