package logging

import (
	"encoding/hex"
	"log/slog"
	"strings"
)

// RedactedValue replaces values logged under keys outside the allowlist.
const RedactedValue = "[REDACTED]"

// Keys logged verbatim. Targets are public candidates; callers, stakers and
// client addresses are not.
var allowlist = map[string]struct{}{
	"component": {},
	"error":     {},
	"op":        {},
	"height":    {},
	"target":    {},
	"events":    {},
	"method":    {},
	"path":      {},
	"status":    {},
}

// IsAllowlisted reports whether key is logged without redaction.
func IsAllowlisted(key string) bool {
	_, ok := allowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField redacts value unless key is allowlisted.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// Account logs addr in full under an allowlisted key and as 0xaaaa..bbbb
// otherwise.
func Account(key string, addr [20]byte) slog.Attr {
	encoded := hex.EncodeToString(addr[:])
	if IsAllowlisted(key) {
		return slog.String(key, "0x"+encoded)
	}
	return slog.String(key, "0x"+encoded[:4]+".."+encoded[len(encoded)-4:])
}
