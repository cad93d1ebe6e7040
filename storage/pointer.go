package storage

import (
	"errors"
	"strings"
)

var ErrInvalidPointer = errors.New("Invalid JSON pointer")

var (
	pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")

	// Characters with special meaning in gjson/sjson paths
	pathEscaper = strings.NewReplacer(
		`\`, `\\`,
		`.`, `\.`,
		`*`, `\*`,
		`?`, `\?`,
		`|`, `\|`,
		`#`, `\#`,
		`@`, `\@`,
		`!`, `\!`,
		`:`, `\:`,
	)
)

// Pointer is a parsed RFC 6901 JSON pointer. The empty pointer refers to the
// whole document.
type Pointer []string

func ParsePointer(s string) (Pointer, error) {
	if s == "" {
		return Pointer{}, nil
	}

	if s[0] != '/' {
		return nil, ErrInvalidPointer
	}

	tokens := strings.Split(s[1:], "/")
	for i, token := range tokens {
		// Empty keys are legal JSON but can't be expressed as a gjson path
		if token == "" {
			return nil, ErrInvalidPointer
		}

		tokens[i] = pointerUnescaper.Replace(token)
	}

	return Pointer(tokens), nil
}

func (p Pointer) IsRoot() bool {
	return len(p) == 0
}

func (p Pointer) Parent() Pointer {
	if p.IsRoot() {
		return p
	}

	return p[:len(p)-1]
}

func (p Pointer) Last() string {
	if p.IsRoot() {
		return ""
	}

	return p[len(p)-1]
}

// HasPrefix returns true if p is prefix or somewhere underneath it.
func (p Pointer) HasPrefix(prefix Pointer) bool {
	if len(prefix) > len(p) {
		return false
	}

	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}

	return true
}

// Path converts p to a gjson/sjson path.
func (p Pointer) Path() string {
	escaped := make([]string, len(p))
	for i, token := range p {
		escaped[i] = pathEscaper.Replace(token)
	}

	return strings.Join(escaped, ".")
}

func (p Pointer) String() string {
	if p.IsRoot() {
		return ""
	}

	escaper := strings.NewReplacer("~", "~0", "/", "~1")

	var b strings.Builder
	for _, token := range p {
		b.WriteByte('/')
		b.WriteString(escaper.Replace(token))
	}

	return b.String()
}
