package upbit

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// authToken builds the per-request JWT Upbit expects on private
// endpoints: access key plus a fresh uuid nonce, and when the request
// carries parameters, a SHA512 hash of the encoded query string.
func (c *Client) authToken(query url.Values) (string, error) {
	if c.accessKey == "" || c.secretKey == "" {
		return "", fmt.Errorf("upbit: access/secret key not configured")
	}

	claims := jwt.MapClaims{
		"access_key": c.accessKey,
		"nonce":      uuid.NewString(),
	}
	if len(query) > 0 {
		sum := sha512.Sum512([]byte(query.Encode()))
		claims["query_hash"] = hex.EncodeToString(sum[:])
		claims["query_hash_alg"] = "SHA512"
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.secretKey))
	if err != nil {
		return "", fmt.Errorf("upbit: sign token: %w", err)
	}
	return token, nil
}
