package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
)

// authorTagLen is the hex length of a derived author tag. Twelve characters
// keep tags short enough for display while leaving collisions implausible
// for a room's writer population.
const authorTagLen = 12

// AuthorTag derives an opaque per-writer pseudonym from a client address.
// The port is stripped so one visitor keeps one tag across connections; the
// raw address never leaves this function.
func AuthorTag(remoteAddr string) string {
	host := strings.TrimSpace(remoteAddr)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	sum := sha256.Sum256([]byte(host))
	return hex.EncodeToString(sum[:])[:authorTagLen]
}
