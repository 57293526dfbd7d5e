// Package middleware provides request-scoped middleware: authentication,
// structured logging, rate limiting, metrics and tracing.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"agora/internal/config"
	"agora/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenType distinguishes short-lived access tokens from refresh tokens.
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// WSTicketTTL bounds how long a WebSocket ticket can be redeemed.
const WSTicketTTL = 30 * time.Second

var (
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrWrongTokenType = errors.New("wrong token type")
	ErrTokenRevoked   = errors.New("token has been revoked")
	ErrInvalidTicket  = errors.New("invalid or expired websocket ticket")
)

// Claims is the verified content of a token.
type Claims struct {
	UserID    uint
	Username  string
	JTI       string
	Type      TokenType
	ExpiresAt time.Time
}

type tokenClaims struct {
	Username string    `json:"username,omitempty"`
	Type     TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 tokens and WebSocket tickets.
// Revocation and tickets live in Redis; without Redis, tokens cannot be
// revoked and tickets cannot be issued.
type Authenticator struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	redis      *redis.Client
}

// NewAuthenticator builds an Authenticator from cfg.
func NewAuthenticator(cfg *config.Config, rdb *redis.Client) *Authenticator {
	accessTTL := cfg.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := cfg.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Authenticator{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		redis:      rdb,
	}
}

func blacklistKey(jti string) string { return "blacklist:" + jti }

func ticketKey(ticket string) string { return "ws_ticket:" + ticket }

// Issue signs a token of the given type for the user.
func (a *Authenticator) Issue(userID uint, username string, typ TokenType) (string, error) {
	if len(a.secret) == 0 {
		return "", fmt.Errorf("JWT secret not configured")
	}

	ttl := a.accessTTL
	if typ == RefreshToken {
		ttl = a.refreshTTL
	}

	now := time.Now()
	claims := tokenClaims{
		Username: username,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    a.issuer,
			Audience:  jwt.ClaimStrings{a.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Parse verifies signature, issuer, audience, expiry and type. It does not
// consult the revocation list; see Verify.
func (a *Authenticator) Parse(tokenString string, want TokenType) (*Claims, error) {
	var tc tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &tc, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithAudience(a.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if tc.Type != want {
		return nil, ErrWrongTokenType
	}

	userID, err := strconv.ParseUint(tc.Subject, 10, 32)
	if err != nil || userID == 0 {
		return nil, ErrInvalidToken
	}

	claims := &Claims{
		UserID:   uint(userID),
		Username: tc.Username,
		JTI:      tc.ID,
		Type:     tc.Type,
	}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims, nil
}

// Verify parses the token and rejects it if its jti was revoked.
func (a *Authenticator) Verify(ctx context.Context, tokenString string, want TokenType) (*Claims, error) {
	claims, err := a.Parse(tokenString, want)
	if err != nil {
		return nil, err
	}
	if claims.JTI != "" && a.redis != nil {
		n, err := a.redis.Exists(ctx, blacklistKey(claims.JTI)).Result()
		if err == nil && n > 0 {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Revoke blacklists the token's jti until it would have expired anyway.
func (a *Authenticator) Revoke(ctx context.Context, claims *Claims) error {
	if a.redis == nil || claims.JTI == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return a.redis.Set(ctx, blacklistKey(claims.JTI), claims.UserID, ttl).Err()
}

// IssueTicket stores a single-use WebSocket ticket for userID.
func (a *Authenticator) IssueTicket(ctx context.Context, userID uint) (string, error) {
	if a.redis == nil {
		return "", errors.New("websocket tickets require redis")
	}
	ticket := uuid.NewString()
	if err := a.redis.Set(ctx, ticketKey(ticket), userID, WSTicketTTL).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}

// RedeemTicket consumes a ticket and returns its user.
func (a *Authenticator) RedeemTicket(ctx context.Context, ticket string) (uint, error) {
	if a.redis == nil || ticket == "" {
		return 0, ErrInvalidTicket
	}
	val, err := a.redis.GetDel(ctx, ticketKey(ticket)).Result()
	if err != nil {
		return 0, ErrInvalidTicket
	}
	userID, err := strconv.ParseUint(val, 10, 32)
	if err != nil || userID == 0 {
		return 0, ErrInvalidTicket
	}
	return uint(userID), nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
}

// Required enforces authentication. WebSocket upgrades under /api/ws must
// present a ticket; other routes take a bearer access token.
func (a *Authenticator) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		isWSPath := strings.HasPrefix(c.Path(), "/api/ws") && c.Path() != "/api/ws/ticket"

		if ticket := c.Query("ticket"); ticket != "" || isWSPath {
			userID, err := a.RedeemTicket(c.UserContext(), ticket)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			setUser(c, userID)
			return c.Next()
		}

		tokenString := BearerToken(c)
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authentication credentials were not provided."))
		}

		claims, err := a.Verify(c.UserContext(), tokenString, AccessToken)
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, ErrTokenRevoked) {
				msg = "Token has been revoked"
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized, models.NewUnauthorizedError(msg))
		}

		c.Locals("claims", claims)
		setUser(c, claims.UserID)
		return c.Next()
	}
}

// Optional identifies the caller when a valid bearer token is present and
// otherwise continues anonymously.
func (a *Authenticator) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString := BearerToken(c); tokenString != "" {
			if claims, err := a.Verify(c.UserContext(), tokenString, AccessToken); err == nil {
				c.Locals("claims", claims)
				setUser(c, claims.UserID)
			}
		}
		return c.Next()
	}
}
