package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"childgen/internal/infra"
	"childgen/internal/infra/credentials"
)

// replicatekey stores a Replicate API token in integration_tokens so the API
// can run without REPLICATE_API_TOKEN in its environment.
func main() {
	var (
		tokenFlag string
		showFlag  bool
	)
	flag.StringVar(&tokenFlag, "token", "", "Replicate API token (fallbacks to REPLICATE_API_TOKEN)")
	flag.BoolVar(&showFlag, "show", false, "report whether a token is stored instead of writing one")
	flag.Parse()

	_ = godotenv.Load()

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "replicatekey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
	if err := store.EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to prepare schema: %v\n", err)
		os.Exit(1)
	}

	if showFlag {
		stored, err := store.ReplicateToken(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read token: %v\n", err)
			os.Exit(1)
		}
		if stored == "" {
			fmt.Println("no Replicate token stored")
			return
		}
		fmt.Printf("Replicate token stored (%s)\n", mask(stored))
		return
	}

	token := strings.TrimSpace(tokenFlag)
	if token == "" {
		token = strings.TrimSpace(os.Getenv("REPLICATE_API_TOKEN"))
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "Replicate token is required via -token or REPLICATE_API_TOKEN")
		os.Exit(1)
	}

	if err := store.SetReplicateToken(ctx, token); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist replicate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Replicate token stored successfully (%s)\n", mask(token))
}

func mask(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
