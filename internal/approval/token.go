// Package approval derives and verifies the tokens that gate the
// approve/reject links mailed to managers. A token is a pure function
// of the ticket identifier and a shared secret, so links stay valid
// until the secret is rotated. There is no expiry or revocation; this
// is a documented limitation of the minimal design.
package approval

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Codec mints and verifies approval tokens for ticket identifiers.
type Codec struct {
	secret string
}

// NewCodec creates a codec bound to the shared approval secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: secret}
}

// Mint derives the deterministic token for a ticket identifier.
func (c *Codec) Mint(ticketID string) string {
	sum := sha256.Sum256([]byte(ticketID + ":" + c.secret))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the expected token and compares without leaking
// timing information.
func (c *Codec) Verify(ticketID, token string) bool {
	if token == "" {
		return false
	}
	expected := c.Mint(ticketID)
	return hmac.Equal([]byte(expected), []byte(token))
}

// Links bundles the two signed URLs embedded in an approval email.
type Links struct {
	Approve string
	Reject  string
}

// BuildLinks constructs the approve and reject URLs for a ticket.
func (c *Codec) BuildLinks(baseURL, ticketID string) Links {
	token := c.Mint(ticketID)
	return Links{
		Approve: fmt.Sprintf("%s/ticket/approve/%s?token=%s", baseURL, ticketID, token),
		Reject:  fmt.Sprintf("%s/ticket/reject/%s?token=%s", baseURL, ticketID, token),
	}
}
