package auth

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/gap-pos/pkg/util/errorutil"
)

// HashPassword hashes an operator password with the given bcrypt cost.
func HashPassword(password string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// OperatorGate protects the admin routes with HTTP basic auth.
type OperatorGate struct {
	username string
	passHash string
}

// NewOperatorGate builds the gate. An empty hash locks every admin route.
func NewOperatorGate(username, passHash string) *OperatorGate {
	return &OperatorGate{username: username, passHash: passHash}
}

// Authorize checks one credential pair.
func (g *OperatorGate) Authorize(user, pass string) bool {
	if g.passHash == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(user), []byte(g.username)) != 1 {
		return false
	}
	return ComparePassword(g.passHash, pass) == nil
}

// Handler returns the fiber middleware.
func (g *OperatorGate) Handler() fiber.Handler {
	return basicauth.New(basicauth.Config{
		Realm:      "gap-pos operator",
		Authorizer: g.Authorize,
		Unauthorized: func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderWWWAuthenticate, `basic realm="gap-pos operator"`)
			return apperrors.NewUnauthorized("operator credentials required")
		},
	})
}
