// Package escape maps raw text onto markup-safe text.
//
// Text content and double-quoted attribute values have different breakout
// characters, so the two escapers are deliberately not interchangeable:
// AttributeValue is an allow-list and is stricter than Text.
package escape

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/conneroisu/markup/internal/errors"
)

var textReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
	"`", "&grave;",
	"\u00a0", "&nbsp;",
	"\u2039", "&lsaquo;",
)

// Text escapes s for use as element content. Characters outside the named
// set pass through unchanged.
func Text(s string) string {
	return textReplacer.Replace(s)
}

func attributeSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == ' ', r == '-', r == '_', r == '/', r == '=':
		return true
	}
	return false
}

// AttributeValue escapes s for use inside a double-quoted attribute value.
// Every rune outside [A-Za-z0-9 -_/=] becomes a decimal character reference.
func AttributeValue(s string) string {
	clean := true
	for _, r := range s {
		if !attributeSafe(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		if attributeSafe(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteString("&#")
		b.WriteString(strconv.Itoa(int(r)))
		b.WriteByte(';')
	}
	return b.String()
}

// ValidAttributeName reports whether name contains only characters allowed in
// an attribute name: no whitespace, '/', '>', '"', '\'' or '='.
func ValidAttributeName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if unicode.IsSpace(r) {
			return false
		}
		switch r {
		case '/', '>', '"', '\'', '=':
			return false
		}
	}
	return true
}

// AttributeName validates name and maps the Go-friendly "className" onto the
// markup attribute "class".
func AttributeName(name string) (string, error) {
	if !ValidAttributeName(name) {
		return "", errors.ErrInvalidAttributeName(name)
	}
	if name == "className" {
		return "class", nil
	}
	return name, nil
}
