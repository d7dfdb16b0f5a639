package token

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/shopspring/decimal"

	"booking-service/internal/bookingerr"
	"booking-service/internal/models"
)

const claimsKind = "itinerary"

// Codec signs and verifies quote tokens. A token is a compact HS256 JWS
// over the quote claims; the codec holds no per-token state, so
// verification is a pure function of the token, the secret and the clock.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec creates a codec with an explicit secret and quote TTL.
func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the verification clock. Test hook.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// TTL returns the configured quote time-to-live.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Sign encodes and signs the claims into an opaque token string.
func (c *Codec) Sign(claims *models.QuoteClaims) (string, error) {
	itemsJSON, err := json.Marshal(claims.Items)
	if err != nil {
		return "", fmt.Errorf("marshal claim items: %w", err)
	}

	mapClaims := jwt.MapClaims{
		"kind":         claimsKind,
		"itinerary_id": claims.ItineraryID,
		"currency":     claims.Currency,
		"items":        string(itemsJSON),
		"bundle_total": claims.BundleTotal.String(),
		"bundle_fees":  claims.BundleFees.String(),
		"nonce":        claims.Nonce,
		"iat":          c.now().Unix(),
		"exp":          claims.ExpiresAt.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign quote token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and expiry and returns the embedded
// claims. Signature mismatch or a malformed token yields TokenInvalid;
// a valid signature with an expiry in the past yields QuoteExpired.
func (c *Codec) Verify(tokenString string) (*models.QuoteClaims, error) {
	parser := jwt.Parser{SkipClaimsValidation: true}
	parsed, err := parser.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, &bookingerr.Error{Kind: bookingerr.TokenInvalid, Message: "invalid quote token", Err: err}
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, bookingerr.New(bookingerr.TokenInvalid, "quote token carries no claims")
	}

	expiresAt, err := claimTime(mapClaims, "exp")
	if err != nil {
		return nil, &bookingerr.Error{Kind: bookingerr.TokenInvalid, Message: "quote token missing expiry", Err: err}
	}
	if c.now().After(expiresAt) {
		return nil, bookingerr.New(bookingerr.QuoteExpired, "quote token expired")
	}

	return c.decodeClaims(mapClaims, expiresAt)
}

func (c *Codec) decodeClaims(mapClaims jwt.MapClaims, expiresAt time.Time) (*models.QuoteClaims, error) {
	kind, _ := mapClaims["kind"].(string)
	if kind != claimsKind {
		return nil, bookingerr.Errf(bookingerr.TokenInvalid, "unexpected quote token kind %q", kind)
	}

	itineraryID, _ := mapClaims["itinerary_id"].(string)
	currency, _ := mapClaims["currency"].(string)
	nonce, _ := mapClaims["nonce"].(string)
	itemsJSON, _ := mapClaims["items"].(string)
	if itineraryID == "" || currency == "" || itemsJSON == "" {
		return nil, bookingerr.New(bookingerr.TokenInvalid, "quote token missing required claims")
	}

	var items []models.ClaimItem
	if err := json.Unmarshal([]byte(itemsJSON), &items); err != nil {
		return nil, &bookingerr.Error{Kind: bookingerr.TokenInvalid, Message: "quote token item claims malformed", Err: err}
	}
	if len(items) == 0 {
		return nil, bookingerr.New(bookingerr.TokenInvalid, "quote token contains no items")
	}
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.Reference == "" {
			return nil, bookingerr.New(bookingerr.TokenInvalid, "quote token item missing reference")
		}
		if _, dup := seen[item.Reference]; dup {
			return nil, bookingerr.Errf(bookingerr.TokenInvalid, "duplicate item reference %q in quote token", item.Reference)
		}
		seen[item.Reference] = struct{}{}
	}

	bundleTotal, err := claimDecimal(mapClaims, "bundle_total")
	if err != nil {
		return nil, &bookingerr.Error{Kind: bookingerr.TokenInvalid, Message: "quote token bundle_total malformed", Err: err}
	}
	bundleFees, err := claimDecimal(mapClaims, "bundle_fees")
	if err != nil {
		return nil, &bookingerr.Error{Kind: bookingerr.TokenInvalid, Message: "quote token bundle_fees malformed", Err: err}
	}

	return &models.QuoteClaims{
		Kind:        kind,
		ItineraryID: itineraryID,
		Currency:    currency,
		Items:       items,
		BundleTotal: bundleTotal,
		BundleFees:  bundleFees,
		ExpiresAt:   expiresAt,
		Nonce:       nonce,
	}, nil
}

func claimTime(claims jwt.MapClaims, key string) (time.Time, error) {
	switch v := claims[key].(type) {
	case float64:
		return time.Unix(int64(v), 0).UTC(), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(n, 0).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("claim %q missing or not a timestamp", key)
	}
}

func claimDecimal(claims jwt.MapClaims, key string) (decimal.Decimal, error) {
	s, _ := claims[key].(string)
	if s == "" {
		return decimal.Zero, fmt.Errorf("claim %q missing", key)
	}
	return decimal.NewFromString(s)
}

// Hash returns the hex SHA-256 digest of a token string. The ledger
// stores this instead of the token itself.
func Hash(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(sum[:])
}
