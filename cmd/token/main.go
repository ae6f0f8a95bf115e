// Command token prints a bearer token for a staff member, for operators
// and local testing.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"sessionattendance/internal/auth"
	"sessionattendance/internal/config"
)

func main() {
	cfg := config.Load()
	subject := flag.String("sub", "", "staff identifier recorded as markedBy")
	role := flag.String("role", auth.RoleStaff, "staff or admin")
	ttl := flag.Duration("ttl", cfg.AccessTTL, "token lifetime")
	flag.Parse()

	if *role != auth.RoleStaff && *role != auth.RoleAdmin {
		log.Fatalf("unknown role %q", *role)
	}
	token, exp, err := auth.Issue(*subject, *role, cfg.JWTIssuer, cfg.JWTSigningKey, *ttl, time.Now())
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Fprintln(os.Stdout, token)
	log.Printf("expires %s", exp.Format(time.RFC3339))
}
