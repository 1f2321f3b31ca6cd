package main

import (
	"flag"
	"fmt"
	"os"
	"syscall"

	"law_ledger_app_go/config"
	"law_ledger_app_go/db"
	"law_ledger_app_go/logger"
	"law_ledger_app_go/models"
	"law_ledger_app_go/services"

	"golang.org/x/term"
)

func main() {
	name := flag.String("name", "", "full name")
	email := flag.String("email", "", "login email")
	role := flag.String("role", string(models.RoleLawyer), "lawyer, client or auditor")
	password := flag.String("password", "", "password (prompted when omitted)")
	flag.Parse()

	// Load configuration
	cfg := config.Load()
	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithComponent("create-user")

	// Initialize database
	if err := db.Initialize(cfg.DBPath, cfg.Environment); err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	parsedRole, ok := models.ParseRole(*role)
	if !ok {
		log.Fatalf("Unknown role %q (expected lawyer, client or auditor)", *role)
	}

	// Get password securely
	if *password == "" {
		fmt.Print("Password: ")
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			log.WithError(err).Fatal("Failed to read password")
		}
		*password = string(passwordBytes)
	}

	user, err := services.CreateUser(db.DB, services.CreateUserInput{
		Name:     *name,
		Email:    *email,
		Password: *password,
		Role:     parsedRole,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to create user")
	}

	fmt.Fprintf(os.Stdout, "Created %s %s (%s)\n", user.Role, user.Email, user.ID)
}
