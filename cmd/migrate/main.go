package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"factory-ops/config"
	"factory-ops/internal/repository"
	"factory-ops/internal/services"
	"factory-ops/pkg/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const usage = `
factory-ops - Database CLI Tool

Usage:
  migrate [command] [args]

Commands:
  up                 Create or update the realtime tables
  status             Show database connection status and table sizes
  seed-dev           Seed development users and a shared conversation
  token <user-id>    Print an access token for a user (development only)

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate seed-dev
  go run ./cmd/migrate token 6f1c...
`

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close(db)

	switch command {
	case "up":
		runMigrationsUp(db)
	case "status":
		showStatus(db)
	case "seed-dev":
		runSeedDevelopment(db)
	case "token":
		issueToken(db, cfg, flag.Arg(1))
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(db *gorm.DB) {
	log.Println("Running migrations...")
	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations completed successfully")
}

func showStatus(db *gorm.DB) {
	if err := database.HealthCheck(db); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Database connection: OK")

	for _, table := range []string{"users", "conversations", "conversation_participants", "messages", "message_read_receipts", "notifications"} {
		if !database.TableExists(db, table) {
			log.Printf("Table %-24s missing", table)
			continue
		}
		count, err := database.GetTableCount(db, table)
		if err != nil {
			log.Printf("Table %-24s count failed: %v", table, err)
			continue
		}
		log.Printf("Table %-24s %d rows", table, count)
	}
}

func runSeedDevelopment(db *gorm.DB) {
	if err := repository.InitSchema(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	result, err := database.SeedDevelopment(context.Background(), db)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d users", len(result.Users))
	log.Printf("Shared conversation: %s", result.Conversation.ID)
}

func issueToken(db *gorm.DB, cfg *config.Config, raw string) {
	userID, err := uuid.Parse(raw)
	if err != nil {
		log.Fatalf("token needs a user id: %v", err)
	}
	if _, err := repository.NewUserRepository(db).GetUserByID(context.Background(), userID); err != nil {
		log.Fatalf("Unknown user %s: %v", userID, err)
	}
	token, expiresIn, err := services.NewAuthService(repository.NewUserRepository(db), cfg).IssueAccessToken(userID)
	if err != nil {
		log.Fatalf("Issuing token failed: %v", err)
	}
	fmt.Println(token)
	log.Printf("Expires in %d seconds", expiresIn)
}
