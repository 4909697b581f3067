// Command dev-token prints a signed user token for local API calls.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"velora/internal/util"

	"github.com/joho/godotenv"
)

func main() {
	userID := flag.String("user", "", "User ID to put in the token subject")
	email := flag.String("email", "", "Optional email claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if *userID == "" || secret == "" {
		fmt.Fprintln(os.Stderr, "usage: JWT_SECRET=... dev-token -user <id>")
		os.Exit(2)
	}

	token, err := util.SignJWT(*userID, *email, secret, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signing token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
