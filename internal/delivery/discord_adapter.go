package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"autorunner/internal/model"
)

// DiscordAdapter delivers "chat" targets on the discord platform. Discord
// has no thread-id concept in DeliveryTarget.TargetKey for this platform
// (spec §3: only chat_id is part of a discord target's identity) — a
// target's ChatID is the destination channel id, a thread id if the
// operator wants a forum/thread channel, used the same way.
type DiscordAdapter struct {
	session *discordgo.Session
}

// NewDiscordAdapter opens a bot session with token.
func NewDiscordAdapter(token string) (*DiscordAdapter, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("open discord session: %w", err)
	}
	return &DiscordAdapter{session: session}, nil
}

// Deliver sends chunk to target.ChatID (a discord channel id).
func (a *DiscordAdapter) Deliver(_ context.Context, target model.DeliveryTarget, outboxID, chunk string, attachments []model.Attachment) error {
	text := withAttachmentNames(chunk, attachments)
	if _, err := a.session.ChannelMessageSend(target.ChatID, text); err != nil {
		return fmt.Errorf("send discord message (outbox %s): %w", outboxID, err)
	}
	return nil
}

// StreamInbound registers a gateway message handler and translates each
// message not authored by the bot itself into an InboundMsg. The handler
// stays registered for the session's lifetime; the returned channel is
// closed once ctx is cancelled.
func (a *DiscordAdapter) StreamInbound(ctx context.Context) (<-chan model.InboundMsg, error) {
	out := make(chan model.InboundMsg)

	remove := a.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot {
			return
		}
		msg := model.InboundMsg{
			Platform:  model.PlatformDiscord,
			ChatID:    m.ChannelID,
			MessageID: m.ID,
			Actor:     m.Author.Username,
			Text:      m.Content,
			Timestamp: time.Now().UTC(),
		}
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	})

	go func() {
		<-ctx.Done()
		remove()
		close(out)
	}()

	return out, nil
}

// Close releases the underlying gateway connection.
func (a *DiscordAdapter) Close() error {
	return a.session.Close()
}
