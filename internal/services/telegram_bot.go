package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier delivers one-time codes and confirmations to a Telegram chat.
type Notifier interface {
	Notify(ctx context.Context, chatID, text string) error
	Enabled() bool
}

type TelegramService struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramService builds the bot client without calling getMe, so startup does not depend on Telegram.
// An empty token gives a disabled notifier.
func NewTelegramService(botToken string) *TelegramService {
	if botToken == "" {
		return &TelegramService{}
	}
	bot := &tgbotapi.BotAPI{
		Token:  botToken,
		Client: &http.Client{Timeout: 10 * time.Second},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(tgbotapi.APIEndpoint)
	return &TelegramService{bot: bot}
}

// WithEndpoint points the bot at another Bot API server (format "<base>/bot%s/%s").
func (t *TelegramService) WithEndpoint(endpoint string) *TelegramService {
	if t.bot != nil {
		t.bot.SetAPIEndpoint(endpoint)
	}
	return t
}

func (t *TelegramService) Enabled() bool { return t != nil && t.bot != nil }

func (t *TelegramService) Notify(ctx context.Context, chatID, text string) error {
	chatID = strings.TrimSpace(chatID)
	if !t.Enabled() || chatID == "" {
		log.Printf("[tg][skip] token or chatID empty (token? %v chatID=%q)", t.Enabled(), chatID)
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("[tg][send][err] chatID=%s err=%v", chatID, err)
		return fmt.Errorf("telegram sendMessage failed: %w", err)
	}
	log.Printf("[tg][send] chatID=%s", chatID)
	return nil
}
