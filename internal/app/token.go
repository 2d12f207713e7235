package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/S4DIB/news-hud-sub001/internal/auth"
)

func runHashToken(args []string) int {
	fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	token := fs.String("token", "", "Token to hash (a random one is generated when empty)")
	cost := fs.Int("cost", auth.DefaultBcryptCost, "bcrypt cost")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *cost < bcrypt.MinCost || *cost > bcrypt.MaxCost {
		fmt.Fprintf(os.Stderr, "--cost must be between %d and %d\n", bcrypt.MinCost, bcrypt.MaxCost)
		return 2
	}

	plain := strings.TrimSpace(*token)
	generated := false
	if plain == "" {
		var err error
		plain, err = auth.GenerateToken()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate token: %v\n", err)
			return 1
		}
		generated = true
	}

	hash, err := auth.HashToken(plain, *cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash token: %v\n", err)
		return 1
	}

	if generated {
		fmt.Printf("token=%s\n", plain)
	}
	fmt.Printf("INGEST_TOKEN_HASH=%s\n", hash)
	return 0
}
