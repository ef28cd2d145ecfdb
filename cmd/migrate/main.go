// migrate applies or rolls back the embedded schema migrations.
//
// Usage: go run ./cmd/migrate [up|down|version]
package main

import (
	"fmt"
	"log"
	"os"

	"loan-manager/internal/config"
	"loan-manager/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatal(err)
		}
		log.Println("migrations applied")
	case "down":
		if err := db.RunMigrationsDown(cfg.DatabaseURL); err != nil {
			log.Fatal(err)
		}
		log.Println("migrations rolled back")
	case "version":
		v, dirty, err := db.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("version %d (dirty: %t)\n", v, dirty)
	default:
		log.Fatalf("unknown command %q, expected up, down or version", cmd)
	}
}
