// authcore-migrate applies the embedded Postgres schema migrations.
//
//	go run ./cmd/authcore-migrate -direction up
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/store/postgres"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set; export it or add it to .env")
		os.Exit(1)
	}

	if err := postgres.Migrate(cfg.DatabaseURL, *direction); err != nil && !errors.Is(err, postgres.ErrNoChange) {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	fmt.Printf("migrations applied (%s)\n", *direction)
}
