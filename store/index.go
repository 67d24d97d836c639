// ABOUTME: Lookup index maintenance for the contact store
// ABOUTME: Pure term derivation plus insert/delete/replace over (old, new) entity pairs
package store

import (
	"strings"

	"github.com/copainapp/copain/models"
	"github.com/copainapp/copain/normalize"
)

const minTokenLen = 2

// indexTerms is the full set of index entries one contact contributes.
type indexTerms struct {
	tokens  []string
	name    string
	domain  string
	prefix  string
}

// deriveTerms computes a contact's index terms. Pure: the same contact always
// yields the same terms, which makes insert/delete symmetric.
func deriveTerms(c *models.Contact) indexTerms {
	seen := make(map[string]bool)
	var tokens []string
	addToken := func(tok string) {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if len(tok) < minTokenLen || seen[tok] {
			return
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}

	for _, field := range []string{c.DisplayName, c.GivenName, c.FamilyName} {
		for _, word := range strings.Fields(field) {
			addToken(word)
		}
	}
	if c.Email != "" {
		for _, part := range strings.FieldsFunc(c.Email, func(r rune) bool {
			return r == '@' || r == '.' || r == '+' || r == '_' || r == '-'
		}) {
			addToken(part)
		}
	}
	addToken(strings.TrimPrefix(c.Phone, "+"))

	terms := indexTerms{
		tokens: tokens,
		name:   strings.ToLower(strings.TrimSpace(c.DisplayName)),
		prefix: normalize.CountryPrefix(c.Phone),
	}
	if at := strings.LastIndex(c.Email, "@"); at >= 0 && at < len(c.Email)-1 {
		terms.domain = strings.ToLower(c.Email[at+1:])
	}
	return terms
}

// indexes holds the four lookup structures, each bucket a set of phones.
type indexes struct {
	tokens   map[string]map[string]struct{}
	names    map[string]map[string]struct{}
	domains  map[string]map[string]struct{}
	prefixes map[string]map[string]struct{}
}

func newIndexes() *indexes {
	return &indexes{
		tokens:   make(map[string]map[string]struct{}),
		names:    make(map[string]map[string]struct{}),
		domains:  make(map[string]map[string]struct{}),
		prefixes: make(map[string]map[string]struct{}),
	}
}

func addEntry(m map[string]map[string]struct{}, key, phone string) {
	if key == "" {
		return
	}
	bucket, ok := m[key]
	if !ok {
		bucket = make(map[string]struct{})
		m[key] = bucket
	}
	bucket[phone] = struct{}{}
}

func dropEntry(m map[string]map[string]struct{}, key, phone string) {
	if key == "" {
		return
	}
	bucket, ok := m[key]
	if !ok {
		return
	}
	delete(bucket, phone)
	if len(bucket) == 0 {
		delete(m, key)
	}
}

func (ix *indexes) insert(c *models.Contact) {
	terms := deriveTerms(c)
	for _, tok := range terms.tokens {
		addEntry(ix.tokens, tok, c.Phone)
	}
	addEntry(ix.names, terms.name, c.Phone)
	addEntry(ix.domains, terms.domain, c.Phone)
	addEntry(ix.prefixes, terms.prefix, c.Phone)
}

func (ix *indexes) delete(c *models.Contact) {
	terms := deriveTerms(c)
	for _, tok := range terms.tokens {
		dropEntry(ix.tokens, tok, c.Phone)
	}
	dropEntry(ix.names, terms.name, c.Phone)
	dropEntry(ix.domains, terms.domain, c.Phone)
	dropEntry(ix.prefixes, terms.prefix, c.Phone)
}

// replace re-establishes index consistency across a mutation.
func (ix *indexes) replace(old, updated *models.Contact) {
	ix.delete(old)
	ix.insert(updated)
}
