// Package export renders a room transcript as plain text.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/lowrenn/inkroom/internal/services/room/domain"
)

// wrapWidth is the column messages are wrapped at.
const wrapWidth = 72

// TextWriter streams a transcript to w one message at a time, so a large
// room never needs to be held in memory.
type TextWriter struct {
	w          io.Writer
	includeOOC bool
}

// NewTextWriter returns a writer targeting w. Out-of-character messages are
// skipped unless includeOOC is set.
func NewTextWriter(w io.Writer, includeOOC bool) *TextWriter {
	return &TextWriter{w: w, includeOOC: includeOOC}
}

// Header writes the transcript header from the room's meta fields.
func (t *TextWriter) Header(title, desc string) error {
	if _, err := fmt.Fprintf(t.w, "%s\n", title); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if desc != "" {
		if _, err := fmt.Fprintf(t.w, "%s\n", wrap(desc, wrapWidth)); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if _, err := fmt.Fprintf(t.w, "%s\n\n", strings.Repeat("-", 10)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// Message writes one message. charaName resolves a character id to its
// display name; unknown ids render as entries by an unnamed character.
func (t *TextWriter) Message(doc domain.Document, charaName func(id string) string) error {
	msgType, _ := doc.Fields["type"].(string)
	content, _ := doc.Fields["content"].(string)

	switch msgType {
	case "narrator":
		_, err := fmt.Fprintf(t.w, "%s\n\n", wrap(content, wrapWidth))
		if err != nil {
			return fmt.Errorf("write message: %w", err)
		}
	case "chara":
		charaID, _ := doc.Fields["charaId"].(string)
		name := ""
		if charaName != nil {
			name = charaName(charaID)
		}
		if name == "" {
			name = "???"
		}
		_, err := fmt.Fprintf(t.w, "%s:\n%s\n\n", strings.ToUpper(name), wrap(content, wrapWidth))
		if err != nil {
			return fmt.Errorf("write message: %w", err)
		}
	case "ooc":
		if !t.includeOOC {
			return nil
		}
		_, err := fmt.Fprintf(t.w, "(( OOC: %s ))\n\n", wrap(content, wrapWidth))
		if err != nil {
			return fmt.Errorf("write message: %w", err)
		}
	}
	return nil
}

// wrap re-flows text so no line exceeds width columns. Words longer than the
// width stay intact on their own line.
func wrap(text string, width int) string {
	var b strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		col := 0
		for j, word := range strings.Fields(line) {
			if j > 0 {
				if col+1+len(word) > width {
					b.WriteByte('\n')
					col = 0
				} else {
					b.WriteByte(' ')
					col++
				}
			}
			b.WriteString(word)
			col += len(word)
		}
	}
	return b.String()
}
