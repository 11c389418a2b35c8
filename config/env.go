package config

import (
	"fmt"
	"strings"

	"xorkevin.dev/kerrors"
)

const (
	envDefaultSeparator = ":-"
)

type (
	// LookupFunc looks up an environment variable
	LookupFunc = func(key string) (string, bool)
)

func isEnvStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isEnvChar(c byte) bool {
	return isEnvStart(c) || (c >= '0' && c <= '9')
}

func isEnvName(s string) bool {
	if s == "" || !isEnvStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isEnvChar(s[i]) {
			return false
		}
	}
	return true
}

// ExpandEnv replaces $VAR, ${VAR}, and ${VAR:-default} in s with values from
// lookup. Unset variables without a default expand to the empty string. A $
// not followed by a variable is kept.
func ExpandEnv(s string, lookup LookupFunc) (string, error) {
	b := strings.Builder{}
	for text := s; len(text) > 0; {
		k := strings.IndexByte(text, '$')
		if k < 0 || k+1 >= len(text) {
			b.WriteString(text)
			break
		}
		b.WriteString(text[:k])
		text = text[k+1:]

		key := ""
		fallback := ""
		switch {
		case isEnvStart(text[0]):
			end := 1
			for end < len(text) && isEnvChar(text[end]) {
				end++
			}
			key = text[:end]
			text = text[end:]
		case text[0] == '{':
			end := strings.IndexByte(text, '}')
			if end < 0 {
				return "", kerrors.WithKind(nil, ErrInvalidConfig, fmt.Sprintf("Unclosed brace in %q", s))
			}
			key, fallback, _ = strings.Cut(text[1:end], envDefaultSeparator)
			text = text[end+1:]
			if !isEnvName(key) {
				return "", kerrors.WithKind(nil, ErrInvalidConfig, fmt.Sprintf("Invalid variable name %q in %q", key, s))
			}
		default:
			b.WriteByte('$')
			continue
		}

		if v, ok := lookup(key); ok {
			b.WriteString(v)
		} else {
			b.WriteString(fallback)
		}
	}
	return b.String(), nil
}
