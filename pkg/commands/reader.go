package commands

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Reader splits a command's argument tail into tokens. A Reader is consumed
// front to back and is used for a single invocation.
type Reader struct {
	buf string
	pos int
}

// NewReader returns a Reader over the text following the command name.
func NewReader(tail string) *Reader {
	return &Reader{buf: tail}
}

// NextPositional returns the next whitespace-delimited token. Double quotes
// group words into one token and are stripped from the result. An empty
// string means the input is exhausted.
func (r *Reader) NextPositional() (string, error) {
	var b strings.Builder
	inQuotes := false

	r.skipSpace()
	for r.pos < len(r.buf) {
		c, size := utf8.DecodeRuneInString(r.buf[r.pos:])
		r.pos += size

		switch {
		case c == '"':
			inQuotes = !inQuotes
		case unicode.IsSpace(c) && !inQuotes:
			return b.String(), nil
		default:
			b.WriteRune(c)
		}
	}

	if inQuotes {
		return "", ErrExpectedClosingQuote
	}
	return b.String(), nil
}

// NextKeywordRest returns everything not consumed yet, verbatim. It returns
// an empty string when only whitespace is left.
func (r *Reader) NextKeywordRest() string {
	rest := r.buf[r.pos:]
	r.pos = len(r.buf)

	if strings.TrimSpace(rest) == "" {
		return ""
	}
	return rest
}

// NextVariadic collects positional tokens until the input is exhausted.
func (r *Reader) NextVariadic() ([]string, error) {
	var out []string
	for {
		tok, err := r.NextPositional()
		if err != nil {
			return nil, err
		}
		if tok == "" {
			return out, nil
		}
		out = append(out, tok)
	}
}

func (r *Reader) skipSpace() {
	for r.pos < len(r.buf) {
		c, size := utf8.DecodeRuneInString(r.buf[r.pos:])
		if !unicode.IsSpace(c) {
			return
		}
		r.pos += size
	}
}
