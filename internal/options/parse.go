package options

import (
	"fmt"
	"strings"
	"unicode"
)

type InvalidValue struct {
	Option string
	Reason string
}

type ParseError struct {
	Invalid    []InvalidValue
	Missing    []string
	Unexpected []string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf(
		"parse failed: %d invalid, %d missing, %d unexpected",
		len(e.Invalid), len(e.Missing), len(e.Unexpected),
	)
}

func (e *ParseError) Message() string {
	var b strings.Builder
	b.WriteString("invalid arguments:")
	for _, invalid := range e.Invalid {
		fmt.Fprintf(&b, "\n  %s: %s", invalid.Option, invalid.Reason)
	}
	for _, name := range e.Missing {
		fmt.Fprintf(&b, "\n  %s: missing value", name)
	}
	for _, token := range e.Unexpected {
		fmt.Fprintf(&b, "\n  unexpected argument %q", token)
	}
	return b.String()
}

func (e *ParseError) any() bool {
	return len(e.Invalid) > 0 || len(e.Missing) > 0 || len(e.Unexpected) > 0
}

func Tokenize(command string) []string {
	var tokens []string
	var current strings.Builder
	var quote rune
	quoted := false

	flush := func() {
		if current.Len() > 0 || quoted {
			tokens = append(tokens, current.String())
		}
		current.Reset()
		quoted = false
	}

	for _, r := range command {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			quoted = true
		case unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return tokens
}

func IsHelpRequest(tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	switch tokens[0] {
	case "help", "--help", "?":
		return true
	}
	return false
}

func Parse(tokens []string) (*Options, *ParseError) {
	opts := &Options{}
	var parseErr ParseError

	for i := 0; i < len(tokens); i++ {
		token := tokens[i]

		if !isFlagToken(token) {
			if opts.SourceURL == "" {
				opts.SourceURL = token
				continue
			}
			parseErr.Unexpected = append(parseErr.Unexpected, token)
			continue
		}

		spec, ok := flagIndex[token]
		if !ok {
			parseErr.Unexpected = append(parseErr.Unexpected, token)
			continue
		}

		if spec.set != nil {
			spec.set(opts)
			continue
		}

		if i+1 >= len(tokens) || isFlagToken(tokens[i+1]) {
			parseErr.Missing = append(parseErr.Missing, spec.name)
			continue
		}
		i++

		if err := spec.apply(opts, tokens[i]); err != nil {
			parseErr.Invalid = append(parseErr.Invalid, InvalidValue{Option: spec.name, Reason: err.Error()})
		}
	}

	if parseErr.any() {
		return nil, &parseErr
	}
	return opts, nil
}

func isFlagToken(token string) bool {
	if len(token) < 2 || token[0] != '-' {
		return false
	}
	return token[1] < '0' || token[1] > '9'
}
