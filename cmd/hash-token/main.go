package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/crypto/bcrypt"
)

// hash-token prints a bcrypt hash for ADMIN_TOKEN_HASH. Without -token a
// random token is generated and printed once.
func main() {
	token := flag.String("token", "", "admin token to hash")
	flag.Parse()

	if *token == "" {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			slog.Error("failed to generate token", "error", err)
			os.Exit(1)
		}
		*token = hex.EncodeToString(buf)
		fmt.Printf("Token: %s\n", *token)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(*token), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("failed to hash token", "error", err)
		os.Exit(1)
	}

	fmt.Printf("ADMIN_TOKEN_HASH=%s\n", hashed)
}
