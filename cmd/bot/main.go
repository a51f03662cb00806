package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aurabot/aura/internal/bot"
	"github.com/aurabot/aura/internal/setup"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"
)

func main() {
	ctx := context.Background()

	app, err := setup.InitializeApp(ctx, BotLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(ctx)

	discordBot, err := bot.New(app.Config, app.DB, app.RedisManager, app.Logger)
	if err != nil {
		log.Printf("Failed to create bot: %v", err)
		return
	}

	if err := discordBot.Start(ctx); err != nil {
		log.Printf("Failed to start bot: %v", err)
		return
	}

	log.Println("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	// Wait for interrupt so pending events are processed before closing
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	discordBot.Close()
}
