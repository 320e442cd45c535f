package bpmnbot

import (
	"flag"
	"fmt"
	"os"

	"github.com/schardosin/bpmnbot/pkg/launcher"
	"github.com/schardosin/bpmnbot/pkg/session"
	"go.uber.org/zap"
)

func handleTelegramCommand(args []string) error {
	tgCmd := flag.NewFlagSet("telegram", flag.ExitOnError)
	token := tgCmd.String("token", "", "Bot token (default from config or TELEGRAM_BOT_TOKEN)")
	providerName := tgCmd.String("provider", "", "LLM provider (default from config: cohere)")
	modelName := tgCmd.String("model", "", "Model name")
	lang := tgCmd.String("lang", "", "Conversation language: es or en")
	verbose := tgCmd.Bool("verbose", false, "Enable debug logging")

	if err := tgCmd.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	rt, err := loadRuntime(runtimeOptions{
		Provider: *providerName,
		Model:    *modelName,
		Language: *lang,
		Verbose:  *verbose,
	})
	if err != nil {
		return err
	}
	defer rt.logger.Sync()

	botToken := *token
	if botToken == "" {
		botToken = rt.cfg.Telegram.Token
	}
	if botToken == "" {
		botToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := session.Open(ctx, rt.cfg.Studio.Store, rt.cfg.Studio.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	keys := session.NewKeyRing()
	janitor, err := session.NewJanitor(store, rt.cfg.Studio.SessionTTL, rt.cfg.Studio.CleanupSchedule, rt.logger, func(ids []string) {
		for _, id := range ids {
			keys.Delete(id)
			rt.bot.Forget(id)
		}
	})
	if err != nil {
		return err
	}
	janitor.Start()
	defer janitor.Stop()

	rt.logger.Info("starting telegram bot", zap.String("store", rt.cfg.Studio.Store.Driver))
	return launcher.RunTelegram(ctx, &launcher.TelegramConfig{
		Bot:      rt.bot,
		Token:    botToken,
		Store:    store,
		Keys:     keys,
		Language: rt.cfg.General.Language,
		Logger:   rt.logger,
	})
}
