// internal/common/discord/alerter.go
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// maxMessageLen is Discord's hard limit for a channel message.
const maxMessageLen = 2000

// Alerter posts operator alerts into a single Discord channel.
type Alerter struct {
	channelID string
	send      func(channelID, content string) error
	session   *discordgo.Session
}

// Open creates a bot session and connects it to the gateway.
func Open(token, channelID string) (*Alerter, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("open discord session: %w", err)
	}
	a := NewAlerter(channelID, func(ch, content string) error {
		_, err := session.ChannelMessageSend(ch, content)
		return err
	})
	a.session = session
	return a, nil
}

func NewAlerter(channelID string, send func(channelID, content string) error) *Alerter {
	return &Alerter{channelID: channelID, send: send}
}

func (a *Alerter) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(text) > maxMessageLen {
		text = text[:maxMessageLen-3] + "..."
	}
	if err := a.send(a.channelID, text); err != nil {
		return fmt.Errorf("discord alert: %w", err)
	}
	return nil
}

func (a *Alerter) Close() error {
	if a.session != nil {
		return a.session.Close()
	}
	return nil
}
