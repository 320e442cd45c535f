package launcher

import (
	"context"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/schardosin/bpmnbot/pkg/session"
	"go.uber.org/zap"
)

// recorder captures what the bot sends to Telegram.
type recorder struct {
	texts []string
	docs  []string
}

func (r *recorder) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		r.texts = append(r.texts, v.Text)
	case tgbotapi.DocumentConfig:
		if f, ok := v.File.(tgbotapi.FileBytes); ok {
			r.docs = append(r.docs, f.Name)
		}
	}
	return tgbotapi.Message{}, nil
}

func message(chatID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{Text: text, Chat: &tgbotapi.Chat{ID: chatID}}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return msg
}

func newTelegramChat(t *testing.T) (*telegramChat, *recorder, session.Store) {
	t.Helper()
	bot, _ := newTestBot(t)
	store := session.NewMemoryStore()
	rec := &recorder{}
	cfg := &TelegramConfig{Bot: bot, Store: store, Keys: session.NewKeyRing(), Language: "en", Logger: zap.NewNop()}
	return &telegramChat{cfg: cfg, client: rec, logger: cfg.Logger}, rec, store
}

func TestTelegramConversation(t *testing.T) {
	chat, rec, store := newTelegramChat(t)
	ctx := context.Background()

	chat.handle(ctx, message(7, "/key secret"))
	if len(rec.texts) != 1 || !strings.Contains(rec.texts[0], "API KEY saved") {
		t.Fatalf("unexpected replies %q", rec.texts)
	}

	chat.handle(ctx, message(7, "Orders arrive by mail"))
	if last := rec.texts[len(rec.texts)-1]; last != "Who signs the order?" {
		t.Errorf("unexpected chat reply %q", last)
	}

	chat.handle(ctx, message(7, "TERMINAR"))
	if len(rec.docs) != 2 || rec.docs[0] != "bpmn_output.xml" || rec.docs[1] != "bpmn_output.html" {
		t.Errorf("expected XML and viewer documents, got %q", rec.docs)
	}

	sess, err := store.Get(ctx, "tg-7")
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if sess.Result == nil {
		t.Errorf("stored session must keep the result")
	}
}

func TestTelegramMissingKey(t *testing.T) {
	chat, rec, _ := newTelegramChat(t)
	chat.handle(context.Background(), message(9, "hello"))

	if len(rec.texts) != 2 {
		t.Fatalf("expected notice and usage, got %q", rec.texts)
	}
	if rec.texts[0] != "Don't forget to add your API KEY" {
		t.Errorf("unexpected notice %q", rec.texts[0])
	}
}

func TestTelegramReset(t *testing.T) {
	chat, rec, store := newTelegramChat(t)
	ctx := context.Background()

	chat.handle(ctx, message(3, "/key secret"))
	chat.handle(ctx, message(3, "Step one"))
	rec.texts = nil

	chat.handle(ctx, message(3, "/reset"))
	if len(rec.texts) != 4 || rec.texts[0] != "Conversation restarted." {
		t.Errorf("expected reset notice and greetings, got %q", rec.texts)
	}
	sess, _ := store.Get(ctx, "tg-3")
	if sess.Conversation.UserMessageCount() != 0 {
		t.Errorf("reset must drop the collected context")
	}
}
