// Command bot runs the membership verification bot: the Discord gateway
// session, the OAuth callback server and everything they share.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"socbot/internal/bot"
	"socbot/internal/cache"
	"socbot/internal/config"
	"socbot/internal/database"
	"socbot/internal/discord"
	"socbot/internal/mailer"
	"socbot/internal/oauth"
	"socbot/internal/observability"
	"socbot/internal/repository"
	"socbot/internal/server"
	"socbot/internal/service"

	"github.com/bwmarrin/discordgo"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "socbot",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.SamplerRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := cache.InitRedis(cfg.RedisURL); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	rdb := cache.GetClient()

	memberships := repository.NewMembershipRepository(db)
	guilds := repository.NewGuildRepository(db)
	users := repository.NewDiscordUserRepository(db)

	codes := cache.NewCodeStore(rdb)
	tokens := cache.NewTokenCache(rdb)

	isProduction := cfg.Env == "production" || cfg.Env == "prod"
	codeMailer := mailer.NewSendgridMailer(cfg.SendgridAPIKey, cfg.EmailFrom, !isProduction)

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		log.Fatalf("Failed to create Discord session: %v", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds

	roles := discord.NewRoleSynchronizer(session)
	tokenSource := oauth.NewTokenSource(oauth.TokenSourceOptions{
		ClientID:     cfg.DiscordClientID,
		ClientSecret: cfg.DiscordSecret,
		RedirectURL:  cfg.DiscordCallbackURL,
	}, tokens, users)
	metadata := oauth.NewMetadataPublisher(oauth.MetadataPublisherOptions{
		ClientID:    cfg.DiscordClientID,
		HomeGuildID: cfg.HomeGuildID,
	}, tokenSource, memberships)

	svc := service.NewMembershipService(memberships, guilds, users, codes, codeMailer, roles, metadata)

	// The begin endpoint sits next to the configured callback.
	authURL := strings.TrimSuffix(cfg.DiscordCallbackURL, "/callback")
	b := bot.New(session, svc, authURL)
	session.AddHandler(b.HandleInteraction)
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		log.Printf("Logged in as %s#%s", r.User.Username, r.User.Discriminator)
	})

	if err := session.Open(); err != nil {
		log.Fatalf("Failed to open Discord session: %v", err)
	}

	if err := bot.RegisterCommands(session, cfg.DiscordClientID, cfg.HomeGuildID); err != nil {
		log.Fatalf("Failed to register commands: %v", err)
	}

	srv := server.NewServer(cfg, db, rdb, users, tokens, svc)
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("Auth server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := session.Close(); err != nil {
		log.Printf("Discord session close error: %v", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Auth server shutdown error: %v", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		log.Printf("Tracing shutdown error: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Println("Shutdown complete")
}
