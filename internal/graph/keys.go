package graph

import (
	"sort"
	"strings"
	"unicode"
)

const keySeparator = "::"

// EntityKey identifies an entity inside one user's namespace. Phone is the
// tenant, Name the normalized entity name. Keeping the parts as fields (and
// only joining them at the storage boundary) means a name containing the
// separator can never collide with another tenant's key.
type EntityKey struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

// NewEntityKey builds the deterministic key for a raw name in a user's
// namespace. Two raw names that normalize identically yield the same key.
func NewEntityKey(phone, rawName string) EntityKey {
	return EntityKey{Phone: phone, Name: NormalizeName(rawName)}
}

// String is the storage form used as the Neo4j node key. Phones are digit
// strings (with an optional leading +), so the separator cannot appear in
// the tenant part.
func (k EntityKey) String() string {
	return k.Phone + keySeparator + k.Name
}

// IsZero reports whether the key is empty
func (k EntityKey) IsZero() bool {
	return k.Phone == "" && k.Name == ""
}

// ParseKey splits a storage-form key back into its parts. The split is on
// the first separator, so names containing "::" round-trip.
func ParseKey(s string) EntityKey {
	idx := strings.Index(s, keySeparator)
	if idx < 0 {
		return EntityKey{Name: s}
	}
	return EntityKey{Phone: s[:idx], Name: s[idx+len(keySeparator):]}
}

// NormalizeName lowercases, trims, collapses whitespace and strips
// punctuation except hyphens. "Data-Science!!" and "  data-science "
// normalize to the same string.
func NormalizeName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
		// everything else (punctuation, symbols) is dropped
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// KeyPair is an unordered entity pair in canonical order (A < B by storage form)
type KeyPair struct {
	A EntityKey
	B EntityKey
}

// CanonicalPairs computes all unordered pairs over the given keys: no
// self-pairs, no duplicates, each pair ordered so A sorts before B. For n
// unique keys it yields n(n-1)/2 pairs, in deterministic order.
func CanonicalPairs(keys []EntityKey) []KeyPair {
	seen := make(map[string]bool, len(keys))
	unique := make([]EntityKey, 0, len(keys))
	for _, k := range keys {
		s := k.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		unique = append(unique, k)
	}

	sort.Slice(unique, func(i, j int) bool {
		return unique[i].String() < unique[j].String()
	})

	var pairs []KeyPair
	for i := 0; i < len(unique); i++ {
		for j := i + 1; j < len(unique); j++ {
			pairs = append(pairs, KeyPair{A: unique[i], B: unique[j]})
		}
	}
	return pairs
}
