// Command admintoken signs a bearer token for calling admin endpoints.
//
//	admintoken -user 1 -ttl 24h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tokensim/backend/internal/config"
	"github.com/tokensim/backend/internal/middleware"
)

func main() {
	userID := flag.Int64("user", 0, "id of an admin user")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *userID <= 0 {
		fmt.Fprintln(os.Stderr, "admintoken: -user is required")
		os.Exit(2)
	}

	config.Init()
	cfg := config.Load()

	token, err := middleware.SignToken(cfg.JWTSecret, *userID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "admintoken: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
