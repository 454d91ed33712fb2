package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"spot-trading-bot/internal/interfaces"
	"spot-trading-bot/internal/types"
)

// Telegram pushes executed decisions to a chat. When token or chat ID are
// missing the notifier degrades to a no-op so the bot runs fine without it.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

var _ interfaces.Notifier = (*Telegram)(nil)

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return &Telegram{}, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) DecisionExecuted(ctx context.Context, d types.Decision, resp types.OrderResp) error {
	if t.bot == nil {
		return nil
	}
	text := fmt.Sprintf("%s %s\namount: $%.2f (%.1f%%)\nfill: %.8f @ %.8f\nreason: %s",
		d.Action, d.Pair, d.Amount, d.AllocationPercent, resp.Quantity, resp.Price, d.Reason)
	msg := tgbotapi.NewMessage(t.chatID, text)
	_, err := t.bot.Send(msg)
	return err
}
