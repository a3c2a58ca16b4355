// Command main issues development JWTs accepted by the Scribe API.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"scribe/internal/config"
	"scribe/internal/middleware"
	"scribe/internal/models"
)

func main() {
	userID := flag.Uint("user", 1, "User ID placed in the token")
	role := flag.String("role", models.RoleUser, "Role: user or admin")
	name := flag.String("name", "", "Display name")
	avatar := flag.String("avatar", "", "Avatar URL")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	if *role != models.RoleUser && *role != models.RoleAdmin {
		log.Fatalf("Unknown role: %s", *role)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	token, err := middleware.NewAuth(cfg.JWTSecret).Sign(models.Caller{
		UserID: *userID,
		Role:   *role,
		Name:   *name,
		Avatar: *avatar,
	}, *ttl)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
