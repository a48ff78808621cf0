package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"civicdesk/backend/internal/auth"
	"civicdesk/backend/internal/config"
	"civicdesk/backend/internal/models"
	"civicdesk/backend/internal/storage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const usage = `Usage: admin <command> [args]

Commands:
  create-admin <name> <email> <password>
  add-worker <name> <email> <password>
  remove-worker <worker_id>
  announce <title> <message> [roles, comma separated]`

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	db, err := storage.OpenPostgres(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	storageSvc := storage.NewStorageService(db, nil) // Redis для CLI не потрібен
	accounts := auth.NewService(storageSvc, auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL), zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := runCommand(ctx, accounts, storageSvc, os.Args[1], os.Args[2:]); err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

func runCommand(ctx context.Context, accounts *auth.Service, s storage.Storage, command string, args []string) error {
	switch command {
	case "create-admin", "add-worker":
		if len(args) != 3 {
			return fmt.Errorf("expected <name> <email> <password>\n%s", usage)
		}
		in := auth.NewAccount{Name: args[0], Email: args[1], Password: args[2]}
		var (
			u   *models.User
			err error
		)
		if command == "create-admin" {
			u, err = accounts.CreateAdmin(ctx, in)
		} else {
			u, err = accounts.AddWorker(ctx, in)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Created %s %q (id %d).\n", u.Role, u.Name, u.ID)

	case "remove-worker":
		if len(args) != 1 {
			return fmt.Errorf("expected <worker_id>\n%s", usage)
		}
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid worker id %q", args[0])
		}
		if err := accounts.RemoveWorker(ctx, uint(id)); err != nil {
			return err
		}
		fmt.Printf("Worker %d has been removed.\n", id)

	case "announce":
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("expected <title> <message> [roles]\n%s", usage)
		}
		a := &models.Announcement{Title: args[0], Message: args[1]}
		if len(args) == 3 {
			for _, r := range strings.Split(args[2], ",") {
				role := models.Role(strings.TrimSpace(r))
				if !role.Valid() {
					return fmt.Errorf("unknown role %q", r)
				}
				a.Audience = append(a.Audience, string(role))
			}
		}
		if err := s.CreateAnnouncement(ctx, a); err != nil {
			return err
		}
		fmt.Printf("Announcement %d published to %s.\n", a.ID, strings.Join(a.Audience, ", "))

	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
	return nil
}
