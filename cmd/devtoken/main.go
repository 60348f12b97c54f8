// Command devtoken mints access tokens for local development.  Production
// tokens come from the identity provider; the service only verifies them.
//
//	go run ./cmd/devtoken -user 7 -role CUSTOMER
//	go run ./cmd/devtoken -user 42 -role VENUE -venue 3
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/noxly/redemptions/internal/middleware"
	"github.com/noxly/redemptions/internal/utils"
)

func main() {
	_ = godotenv.Load()

	user := flag.Uint64("user", 0, "user id (sub claim)")
	role := flag.String("role", middleware.RoleCustomer, "CUSTOMER, VENUE or ADMIN")
	venue := flag.Uint64("venue", 0, "venue id, required for VENUE")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(2)
	}
	if *user == 0 || (*role == middleware.RoleVenue && *venue == 0) {
		flag.Usage()
		os.Exit(2)
	}

	tok, err := utils.NewAccessToken(secret, utils.Claims{UserID: *user, Role: *role, VenueID: *venue}, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(tok.Token)
}
