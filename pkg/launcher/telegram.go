package launcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/schardosin/bpmnbot/pkg/chatbot"
	"github.com/schardosin/bpmnbot/pkg/conversation"
	"github.com/schardosin/bpmnbot/pkg/prompts"
	"github.com/schardosin/bpmnbot/pkg/session"
	"go.uber.org/zap"
)

// TelegramConfig contains configuration for the Telegram launcher
type TelegramConfig struct {
	Bot   *chatbot.Bot
	Token string
	Store session.Store
	Keys  *session.KeyRing
	// Language of new conversations; empty uses the config default.
	Language string
	Logger   *zap.Logger
}

// sender is the part of the Telegram client used to answer a chat.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type telegramChat struct {
	cfg    *TelegramConfig
	client sender
	logger *zap.Logger
}

func telegramSessionID(chatID int64) string {
	return "tg-" + strconv.FormatInt(chatID, 10)
}

// RunTelegram answers Telegram messages until ctx is cancelled. Each chat is
// one conversation stored under its chat ID.
func RunTelegram(ctx context.Context, cfg *TelegramConfig) error {
	if cfg.Token == "" {
		return errors.New("telegram token is not configured")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Store == nil {
		cfg.Store = session.NewMemoryStore()
	}
	if cfg.Keys == nil {
		cfg.Keys = session.NewKeyRing()
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return fmt.Errorf("failed to connect to telegram: %w", err)
	}
	cfg.Logger.Info("telegram bot started", zap.String("user", api.Self.UserName))

	chat := &telegramChat{cfg: cfg, client: api, logger: cfg.Logger}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			chat.handle(ctx, update.Message)
		}
	}
}

// handle processes one incoming message. Turns run sequentially so a chat
// never has two turns in flight.
func (c *telegramChat) handle(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	id := telegramSessionID(chatID)

	sess, err := c.load(ctx, id)
	if err != nil {
		c.logger.Error("failed to load telegram session", zap.String("session", id), zap.Error(err))
		return
	}
	catalog := prompts.For(sess.Conversation.Language)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "reset":
			c.cfg.Store.Delete(ctx, id)
			c.cfg.Bot.Forget(id)
			sess, err = c.load(ctx, id)
			if err != nil {
				c.logger.Error("failed to reset telegram session", zap.String("session", id), zap.Error(err))
				return
			}
			if msg.Command() == "reset" {
				c.text(chatID, catalog.Reset)
			}
			for _, m := range sess.Conversation.Messages {
				c.text(chatID, m.Text)
			}
		case "key":
			key := strings.TrimSpace(msg.CommandArguments())
			if key == "" {
				c.text(chatID, catalog.KeyUsage)
				return
			}
			c.cfg.Keys.Set(id, key)
			c.text(chatID, catalog.KeySaved)
		}
		return
	}

	c.client.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))

	reply, err := c.cfg.Bot.Turn(ctx, id, sess.Conversation, msg.Text, c.cfg.Keys.Get(id))
	if reply != nil && (len(reply.Messages) > 0 || reply.Result != nil) {
		if reply.Result != nil {
			sess.Result = reply.Result
		}
		sess.Touch()
		if saveErr := c.cfg.Store.Save(ctx, sess); saveErr != nil {
			c.logger.Error("failed to save telegram session", zap.String("session", id), zap.Error(saveErr))
		}
	}

	if err != nil {
		c.logger.Debug("telegram turn failed", zap.String("session", id), zap.Error(err))
		switch {
		case reply != nil && reply.Notice != "":
			c.text(chatID, reply.Notice)
			if errors.Is(err, chatbot.ErrMissingAPIKey) {
				c.text(chatID, catalog.KeyUsage)
			}
		case errors.Is(err, chatbot.ErrRateLimited):
			c.text(chatID, "⏳")
		}
		return
	}

	for _, m := range reply.Messages {
		if m.Role == conversation.RoleChatbot {
			c.text(chatID, m.Text)
		}
	}

	if res := reply.Result; res != nil {
		name := c.cfg.Bot.Writer().FileName(id)
		c.document(chatID, name, []byte(res.XML))
		c.document(chatID, strings.TrimSuffix(name, ".xml")+".html", []byte(res.ViewerHTML))
		for _, w := range res.Warnings {
			c.text(chatID, w)
		}
	}
}

// load returns the chat's session, creating it on first contact.
func (c *telegramChat) load(ctx context.Context, id string) (*session.Session, error) {
	sess, err := c.cfg.Store.Get(ctx, id)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return nil, err
	}

	lang := c.cfg.Language
	if lang == "" {
		lang = c.cfg.Bot.Config().General.Language
	}
	sess = session.New(lang, c.cfg.Bot.Config().Chat.Keyword)
	sess.ID = id
	if err := c.cfg.Store.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (c *telegramChat) text(chatID int64, text string) {
	if _, err := c.client.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		c.logger.Warn("failed to send telegram message", zap.Int64("chat", chatID), zap.Error(err))
	}
}

func (c *telegramChat) document(chatID int64, name string, data []byte) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	if _, err := c.client.Send(doc); err != nil {
		c.logger.Warn("failed to send telegram document", zap.Int64("chat", chatID), zap.String("file", name), zap.Error(err))
	}
}
