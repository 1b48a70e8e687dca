package domain

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// roomCodeAlphabet excludes glyphs that read ambiguously when shared aloud
// or in handwriting (0/o, 1/l/i, u/v).
const roomCodeAlphabet = "abcdefghjkmnpqrstwxyz23456789"

const (
	roomCodeGroups    = 4
	roomCodeGroupSize = 4
)

// roomCodePattern matches the code shape the boundary accepts. It is wider
// than generated codes so externally minted codes keep resolving.
var roomCodePattern = regexp.MustCompile(`^[-0-9a-zA-Z]{1,100}$`)

// NewRoomCode generates an opaque user-facing room code: dash-joined groups
// drawn from a constrained alphabet, e.g. "tkfm-29ax-hw7c-qpr3".
func NewRoomCode() (string, error) {
	raw := make([]byte, roomCodeGroups*roomCodeGroupSize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	groups := make([]string, 0, roomCodeGroups)
	for g := range roomCodeGroups {
		var group strings.Builder
		for i := range roomCodeGroupSize {
			b := raw[g*roomCodeGroupSize+i]
			group.WriteByte(roomCodeAlphabet[int(b)%len(roomCodeAlphabet)])
		}
		groups = append(groups, group.String())
	}
	return strings.Join(groups, "-"), nil
}

// ValidRoomCode reports whether code has an acceptable room-code shape.
func ValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}
