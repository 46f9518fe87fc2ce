package delivery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"autorunner/internal/model"
)

// TelegramAdapter delivers "chat" targets on the telegram platform via the
// Bot API. Telegram has no server-side idempotency key, so outboxID is
// carried only for logging — a crash between send and
// DeliveryMarkSucceeded can resend a chunk on the operator's next retry.
type TelegramAdapter struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramAdapter constructs a bot client from token.
func NewTelegramAdapter(token string) (*TelegramAdapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot client: %w", err)
	}
	return &TelegramAdapter{bot: bot}, nil
}

// Deliver sends chunk to target.ChatID (and target.ThreadID, for a forum
// topic, when set).
func (a *TelegramAdapter) Deliver(_ context.Context, target model.DeliveryTarget, outboxID, chunk string, attachments []model.Attachment) error {
	chatID, err := strconv.ParseInt(target.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram target chat_id %q is not numeric: %w", target.ChatID, err)
	}
	msg := tgbotapi.NewMessage(chatID, withAttachmentNames(chunk, attachments))
	if target.ThreadID != "" {
		threadID, err := strconv.Atoi(target.ThreadID)
		if err != nil {
			return fmt.Errorf("telegram target thread_id %q is not numeric: %w", target.ThreadID, err)
		}
		msg.MessageThreadID = threadID
	}
	if _, err := a.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message (outbox %s): %w", outboxID, err)
	}
	return nil
}

// StreamInbound polls the long-poll updates channel and translates each
// incoming text message into an InboundMsg. The returned channel is closed
// once ctx is cancelled; a.bot's own update loop is left running until then.
func (a *TelegramAdapter) StreamInbound(ctx context.Context) (<-chan model.InboundMsg, error) {
	updates := a.bot.GetUpdatesChan(tgbotapi.NewUpdate(0))
	out := make(chan model.InboundMsg)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				a.bot.StopReceivingUpdates()
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				if upd.Message == nil {
					continue
				}
				msg := model.InboundMsg{
					Platform:  model.PlatformTelegram,
					ChatID:    strconv.FormatInt(upd.Message.Chat.ID, 10),
					MessageID: strconv.Itoa(upd.Message.MessageID),
					Text:      upd.Message.Text,
					Timestamp: time.Unix(int64(upd.Message.Date), 0).UTC(),
				}
				if upd.Message.MessageThreadID != 0 {
					msg.ThreadID = strconv.Itoa(upd.Message.MessageThreadID)
				}
				if upd.Message.From != nil {
					msg.Actor = upd.Message.From.UserName
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func withAttachmentNames(text string, attachments []model.Attachment) string {
	if len(attachments) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	for _, at := range attachments {
		b.WriteString("\n[attachment: ")
		b.WriteString(at.Name)
		b.WriteString("]")
	}
	return b.String()
}
