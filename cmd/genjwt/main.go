// Command genjwt mints identity tokens for local testing of the review API.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"finreview/internal/middleware"
	"finreview/pkg/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func main() {
	userID := flag.String("user", "", "principal id (random when empty)")
	principalType := flag.String("type", string(domain.PrincipalAdmin), "admin, business or investor")
	role := flag.String("role", string(domain.RoleReviewer), "admin role, ignored for owners")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-123"
	}
	if *userID == "" {
		*userID = uuid.New().String()
	}

	claims := jwt.MapClaims{
		middleware.ClaimUserID:        *userID,
		middleware.ClaimPrincipalType: *principalType,
		"exp":                         time.Now().Add(*ttl).Unix(),
		"iat":                         time.Now().Unix(),
	}
	if domain.PrincipalType(*principalType) == domain.PrincipalAdmin {
		claims[middleware.ClaimRole] = *role
	}

	// Reject claims the API would refuse rather than print a useless token.
	if _, err := middleware.PrincipalFromClaims(claims); err != nil {
		fmt.Fprintln(os.Stderr, "genjwt:", err)
		os.Exit(2)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		fmt.Fprintln(os.Stderr, "genjwt:", err)
		os.Exit(1)
	}
	fmt.Println(signed)
}
