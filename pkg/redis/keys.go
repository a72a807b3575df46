package redis

import "strings"

// Every key lives under the "fc" namespace, e.g. fc:rl:discount_preview:ip:1.2.3.4.
const (
	keyNamespace      = "fc"
	idempotencyPrefix = "idem"
	rateLimitPrefix   = "rl"
	revokedPrefix     = "revoked"
)

func (c *Client) IdempotencyKey(scope, id string) string {
	return joinKey(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return joinKey(rateLimitPrefix, scope)
}

// RevokedTokenKey marks a signed-out access token by its jti.
func (c *Client) RevokedTokenKey(tokenID string) string {
	return joinKey(revokedPrefix, tokenID)
}

func joinKey(parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}
