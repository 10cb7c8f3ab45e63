package main

import (
	"flag"
	"time"

	"github.com/joho/godotenv"

	"memoji/internal/config"
	"memoji/internal/utils"
	"memoji/internal/utils/logger"
)

// Mints a bearer token for the admin API. Meant for operators, not
// end users; the bot itself never needs one.
func main() {
	log := logger.New("helper")

	userID := flag.String("user", "operator", "user id to embed in the token")
	role := flag.String("role", "admin", "role to embed in the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", err)
	}

	token, err := utils.GenerateJWT(cfg.JWT.Secret, *userID, *role, *ttl)
	if err != nil {
		log.Fatal("Failed to mint token", err)
	}

	log.Success("Token for %s (%s, valid %s):", *userID, *role, *ttl)
	log.Info("%s", token)
}
