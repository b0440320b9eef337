package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/crm-support/internal/domain"
	"github.com/spec-kit/crm-support/pkg/apperrors"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller. Authorization decisions
// beyond authentication belong to the caller of the core operations.
type Principal struct {
	SubjectType domain.SubjectType
	SubjectID   string
}

// AuthMiddleware validates bearer tokens and service API keys.
type AuthMiddleware struct {
	tokens       *TokenManager
	apiKeyHashes []string
}

// NewAuthMiddleware constructs middleware. apiKeyHashes are bcrypt hashes of
// accepted service keys.
func NewAuthMiddleware(tokens *TokenManager, apiKeyHashes []string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, apiKeyHashes: apiKeyHashes}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if apiKey := c.Get("X-Api-Key"); apiKey != "" {
		if !m.validAPIKey(apiKey) {
			return apperrors.NewUnauthorized("invalid api key")
		}
		c.Locals(principalKey, &Principal{SubjectType: domain.SubjectTypeService, SubjectID: "service"})
		return c.Next()
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if claims.Subject != domain.SubjectTypeCustomer && claims.Subject != domain.SubjectTypeAgent {
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(principalKey, &Principal{SubjectType: claims.Subject, SubjectID: claims.SubjectID})
	return c.Next()
}

func (m *AuthMiddleware) validAPIKey(key string) bool {
	for _, hash := range m.apiKeyHashes {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil {
			return true
		}
	}
	return false
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// RequireSubject ensures the principal has one of the allowed subject types.
func RequireSubject(allowed ...domain.SubjectType) fiber.Handler {
	allowedSet := make(map[domain.SubjectType]struct{}, len(allowed))
	for _, subject := range allowed {
		allowedSet[subject] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.SubjectType]; !exists {
			return apperrors.NewDomainError("FORBIDDEN", "insufficient privileges", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}
