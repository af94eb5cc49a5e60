// cmd/devtoken mints a staff access token for local testing.
// Usage: go run ./cmd/devtoken -tenant <uuid> -role waiter -name Alex
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"restopos/internal/authz"
	"restopos/internal/config"
	"restopos/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	tenant := flag.String("tenant", "", "tenant UUID (required)")
	role := flag.String("role", string(authz.RoleWaiter), "staff role")
	name := flag.String("name", "Dev User", "display name")
	ttl := flag.Duration("ttl", 8*time.Hour, "token lifetime")
	flag.Parse()

	if _, err := uuid.Parse(*tenant); err != nil {
		log.Fatal().Str("tenant", *tenant).Msg("-tenant must be a UUID")
	}
	if _, ok := authz.DefaultPolicy()[authz.Role(*role)]; !ok {
		log.Warn().Str("role", *role).Msg("role is not in the default policy; requests will be forbidden unless RBAC_POLICY_PATH grants it")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is not set")
	}

	now := time.Now()
	claims := middleware.JWTClaims{
		TenantID: *tenant,
		UserID:   uuid.NewString(),
		Name:     *name,
		Role:     *role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(*ttl)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign token")
	}
	fmt.Println(tok)
}
