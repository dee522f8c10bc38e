package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// issue-token prints a signed JWT for local testing. Login lives in another
// system; this only mints tokens with the server's secret.
func main() {
	var (
		kind    string
		userID  int
		classID int
	)
	flag.StringVar(&kind, "type", string(service.TokenTypeStudent), "Token type: student or staff")
	flag.IntVar(&userID, "user", 0, "User ID to embed in the token")
	flag.IntVar(&classID, "class", 0, "Class ID (students only)")
	flag.Parse()

	tokenType := service.TokenType(kind)
	if tokenType != service.TokenTypeStudent && tokenType != service.TokenTypeStaff {
		fmt.Fprintf(os.Stderr, "unknown token type %q\n", kind)
		os.Exit(2)
	}
	if userID <= 0 {
		fmt.Fprintln(os.Stderr, "-user is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	auth := service.NewAuthService(cfg)

	token, err := auth.GenerateToken(tokenType, userID, classID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
