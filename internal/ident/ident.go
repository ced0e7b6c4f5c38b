package ident

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New returns a globally unique identifier with the given prefix, e.g.
// "txn_9f2c4d...". The random part is a v4 UUID: identifiers reveal nothing
// about creation order and cannot be guessed from prior ones.
func New(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return raw
	}
	return prefix + "_" + raw
}

// Ticket derives a short human-facing reference for support conversations.
// It is presentation only; the opaque id remains the key.
func Ticket(kind, seed string) string {
	digits := 0
	letters := 0
	for _, ch := range seed {
		digits = (digits*33 + int(ch)) % 9000000
		letters = (letters*131 + int(ch)) % (26 * 26)
	}
	if digits < 1000000 {
		digits += 1000000
	}
	first := byte('a' + ((letters / 26) % 26))
	second := byte('a' + (letters % 26))
	return fmt.Sprintf("QC%s%07d%c%c", kind, digits, first, second)
}
