package page

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xraph/catcher/signature"
)

// tokenVersion prefixes every continuation token.
const tokenVersion = "v1"

// cursor is the signed content of a continuation token.
type cursor struct {
	Scope string `json:"c"`
	Key   string `json:"k"`
}

// Codec encodes resume positions into opaque, signed continuation tokens
// bound to one collection scope.
//
// Token format: "v1." + base64url(json cursor) + "." + hex(HMAC-SHA256).
type Codec struct {
	signer *signature.Signer
}

// NewCodec returns a Codec signing with secret.
func NewCodec(secret string) *Codec {
	return &Codec{signer: signature.NewSigner(secret)}
}

// Encode returns the token that resumes scope after key.
func (c *Codec) Encode(scope, key string) (string, error) {
	raw, err := json.Marshal(cursor{Scope: scope, Key: key})
	if err != nil {
		return "", fmt.Errorf("page: encode token: %w", err)
	}
	body := base64.RawURLEncoding.EncodeToString(raw)
	signed := tokenVersion + "." + body
	return signed + "." + c.signer.Sign([]byte(signed)), nil
}

// Decode verifies token and returns the resume key it carries. A token that
// does not verify, or was issued for another scope, yields ErrInvalidToken.
func (c *Codec) Decode(scope, token string) (string, error) {
	version, rest, ok := strings.Cut(token, ".")
	if !ok || version != tokenVersion {
		return "", fmt.Errorf("%w: unsupported format", ErrInvalidToken)
	}
	body, sig, ok := strings.Cut(rest, ".")
	if !ok || body == "" || sig == "" {
		return "", fmt.Errorf("%w: unsupported format", ErrInvalidToken)
	}
	if !c.signer.Verify([]byte(version+"."+body), sig) {
		return "", fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	var cur cursor
	if err := json.Unmarshal(raw, &cur); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if cur.Scope != scope {
		return "", fmt.Errorf("%w: issued for another collection", ErrInvalidToken)
	}
	if cur.Key == "" {
		return "", fmt.Errorf("%w: empty resume key", ErrInvalidToken)
	}
	return cur.Key, nil
}
