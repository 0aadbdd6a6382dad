package security

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// RedactPlaceholder replaces every redacted secret.
const RedactPlaceholder = "***REDACTED***"

// BotTokenPattern matches a Bot API token: the numeric bot ID, a colon and
// the secret part. It also catches tokens embedded in request URLs.
var BotTokenPattern = regexp.MustCompile(`\d{5,}:[A-Za-z0-9_-]{30,}`)

// Redactor replaces secrets in strings. Patterns catch secrets by shape;
// literals catch the exact values loaded at runtime. Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor returns a Redactor that already knows the Bot API token shape.
func NewRedactor() *Redactor {
	return &Redactor{patterns: []*regexp.Regexp{BotTokenPattern}}
}

// AddPattern registers an additional secret shape.
func (r *Redactor) AddPattern(p *regexp.Regexp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, p)
}

// AddLiteral registers an exact secret value. Empty values are ignored.
func (r *Redactor) AddLiteral(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = sortLiterals(append(r.literals, secret))
}

// SyncCredentials replaces the literal set with the store's values.
func (r *Redactor) SyncCredentials(store *CredentialStore) {
	literals := sortLiterals(store.Values())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.literals = literals
}

// Redact returns s with every known secret replaced by RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}

	r.mu.RLock()
	patterns, literals := r.patterns, r.literals
	r.mu.RUnlock()

	for _, lit := range literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, p := range patterns {
		s = p.ReplaceAllLiteralString(s, RedactPlaceholder)
	}
	return s
}

// sortLiterals orders literals longest first so a secret containing another
// one is replaced whole.
func sortLiterals(lits []string) []string {
	lits = slices.DeleteFunc(slices.Clone(lits), func(s string) bool { return s == "" })
	slices.SortFunc(lits, func(a, b string) int {
		return cmp.Or(cmp.Compare(len(b), len(a)), strings.Compare(a, b))
	})
	return slices.Compact(lits)
}
