package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"bansync/internal/config"
	"bansync/internal/models"
	"bansync/internal/service"
	"bansync/internal/storage"

	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	action := flag.String("action", "migrate", "Action to perform (migrate, reset, status, show, latest, add, confirm, deny, clear-posts)")
	id := flag.Uint("id", 0, "Ban record id for show, confirm, deny and clear-posts")
	subject := flag.String("subject", "", "Banned subject for latest and add")
	issuer := flag.String("by", "", "Issuer for add")
	reason := flag.String("reason", "", "Reason for add")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := storage.Initialize(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer storage.Close(db)

	repo := storage.NewBanRepository(db)
	bans := service.NewBanService(repo)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch *action {
	case "migrate":
		if err := bans.Bootstrap(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migration completed successfully")
	case "reset":
		if err := resetDatabase(db, bans); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		log.Println("Database reset completed successfully")
	case "status":
		if err := checkStatus(ctx, db, repo); err != nil {
			log.Fatalf("Status check failed: %v", err)
		}
	case "show":
		record, err := bans.Get(ctx, requireID(*id))
		if err != nil {
			log.Fatalf("Lookup failed: %v", err)
		}
		printRecord(record)
	case "latest":
		if *subject == "" {
			log.Fatalf("-subject is required")
		}
		record, err := bans.GetLatestBySubject(ctx, *subject)
		if err != nil {
			log.Fatalf("Lookup failed: %v", err)
		}
		printRecord(record)
	case "add":
		if *subject == "" {
			log.Fatalf("-subject is required")
		}
		record, err := bans.Create(ctx, *subject, *issuer, *reason)
		if err != nil {
			log.Fatalf("Create failed: %v", err)
		}
		printRecord(record)
	case "confirm":
		if err := bans.Confirm(ctx, requireID(*id)); err != nil {
			log.Fatalf("Confirm failed: %v", err)
		}
	case "deny":
		if err := bans.Deny(ctx, requireID(*id)); err != nil {
			log.Fatalf("Deny failed: %v", err)
		}
	case "clear-posts":
		if err := bans.ClearPosts(ctx, requireID(*id)); err != nil {
			log.Fatalf("Clear posts failed: %v", err)
		}
	default:
		log.Fatalf("Unknown action: %s", *action)
	}
}

func requireID(id uint) uint {
	if id == 0 {
		log.Fatalf("-id is required")
	}
	return id
}

func formatPost(p *int64) string {
	switch {
	case p == nil:
		return "none"
	case *p == models.NoPost:
		return "done"
	default:
		return fmt.Sprint(*p)
	}
}

func printRecord(r *models.BanRecord) {
	if r == nil {
		fmt.Println("No matching ban record")
		return
	}
	fmt.Printf("#%d %s (by %s) status=%s unbanned=%v created=%s\n",
		r.ID, r.Subject, r.Issuer, r.Status, r.Unbanned, r.Created.Format("2006-01-02 15:04:05"))
	if r.Reason != "" {
		fmt.Printf("   reason: %s\n", r.Reason)
	}
	fmt.Printf("   vk_post=%s tg_post=%s tg_post_c=%s\n",
		formatPost(r.VKPost), formatPost(r.TelegramPost), formatPost(r.TelegramComment))
}

// resetDatabase drops the bans_data table and recreates it
func resetDatabase(db *gorm.DB, bans *service.BanService) error {
	fmt.Println("Resetting database...")

	fmt.Print("WARNING: This will delete all ban records! Are you sure? (y/N): ")
	var confirmation string
	fmt.Scanln(&confirmation)

	if confirmation != "y" && confirmation != "Y" {
		return fmt.Errorf("operation cancelled by user")
	}

	if err := db.Migrator().DropTable(&models.BanRecord{}); err != nil {
		return fmt.Errorf("failed to drop bans_data table: %w", err)
	}

	return bans.Bootstrap()
}

// checkStatus reports whether bans_data exists and how many records it holds
func checkStatus(ctx context.Context, db *gorm.DB, repo *storage.BanRepository) error {
	fmt.Println("Checking database status...")

	if !db.Migrator().HasTable(&models.BanRecord{}) {
		fmt.Println("❌ bans_data table does not exist")
		return nil
	}
	fmt.Println("✅ bans_data table exists")

	count, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("   - Contains %d records\n", count)

	for _, p := range models.Platforms {
		needPost, err := repo.GetNeedingPost(ctx, p)
		if err != nil {
			return err
		}
		needUpdate, err := repo.GetNeedingStatusUpdate(ctx, p)
		if err != nil {
			return err
		}
		fmt.Printf("   - %s: %d awaiting post, %d awaiting status update\n", p, len(needPost), len(needUpdate))
	}
	return nil
}
