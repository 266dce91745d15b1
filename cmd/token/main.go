// Command token prints a bearer token for the API, signed with the
// configured secret.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/seanblong/testgen/internal/auth"
	"github.com/seanblong/testgen/internal/config"
	"github.com/spf13/pflag"
)

func main() {
	fs := pflag.NewFlagSet("testgen-token", pflag.ExitOnError)
	subject := fs.String("subject", "", "Who the token is issued to")
	ttl := fs.Duration("ttl", 0, "Token lifetime (defaults to auth.tokenTTL)")

	cfg, err := config.Load("", fs, os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	if *subject == "" {
		log.Fatal("--subject is required")
	}

	guard := auth.NewGuard(cfg.Auth.JwtSecret, cfg.Auth.Enabled, cfg.Auth.TokenTTL)
	token, err := guard.Issue(*subject, *ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
