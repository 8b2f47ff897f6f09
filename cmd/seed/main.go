// Command seed populates a development database with generated memberships.
package main

import (
	"flag"
	"log"

	"socbot/internal/config"
	"socbot/internal/database"
	"socbot/internal/seed"
)

func main() {
	guildID := flag.String("guild", "", "Guild ID to seed (defaults to HOME_GUILD_ID)")
	numMembers := flag.Int("members", 100, "Number of memberships to create")
	shouldClean := flag.Bool("clean", true, "Clear the guild's memberships before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	target := *guildID
	if target == "" {
		target = cfg.HomeGuildID
	}
	if target == "" {
		log.Fatal("No guild to seed: pass -guild or set HOME_GUILD_ID")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db)
	if err := s.Run(seed.Options{
		GuildID:     target,
		NumMembers:  *numMembers,
		ShouldClean: *shouldClean,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
