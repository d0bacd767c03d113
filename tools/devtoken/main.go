package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
)

// Mints an HS256 bearer token signed with JWT_SECRET for calling
// salon-service locally, e.g.
//
//	curl -H "Authorization: Bearer $(go run ./tools/devtoken -role staff -staff-id staff-1)" ...
func main() {
	var (
		secret  = flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 signing secret (JWT_SECRET)")
		sub     = flag.String("sub", "dev-user", "subject (user id)")
		role    = flag.String("role", auth.RoleAdmin, "admin | staff | customer")
		staffID = flag.String("staff-id", "", "staff id for staff tokens")
		ttl     = flag.Duration("ttl", time.Hour, "token lifetime")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("JWT_SECRET is required")
	}
	switch *role {
	case auth.RoleAdmin, auth.RoleCustomer:
	case auth.RoleStaff:
		if strings.TrimSpace(*staffID) == "" {
			fatal("-staff-id is required for staff tokens")
		}
	default:
		fatal("unknown role " + *role)
	}
	if *ttl <= 0 {
		fatal("-ttl must be positive")
	}

	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{
		Sub:     *sub,
		Role:    *role,
		StaffID: *staffID,
		Iat:     now.Unix(),
		Exp:     now.Add(*ttl).Unix(),
	}, *secret)
	if err != nil {
		fatal(err.Error())
	}
	fmt.Println(token)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
