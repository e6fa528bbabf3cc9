package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// KeyGenerator turns raw query text into canonical cache keys.
// It is a pure function of its input.
type KeyGenerator struct{}

// NewKeyGenerator creates a KeyGenerator.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{}
}

// Normalize trims surrounding whitespace and lowercases the query.
func (g *KeyGenerator) Normalize(raw string) string {
	// A Caser is stateful and must not be shared between goroutines.
	return cases.Lower(language.Und).String(strings.TrimSpace(raw))
}

// Key returns the SHA-256 hex digest of the normalized query.
func (g *KeyGenerator) Key(raw string) string {
	return g.KeyNormalized(g.Normalize(raw))
}

// KeyNormalized hashes text that is already normalized.
func (g *KeyGenerator) KeyNormalized(normalized string) string {
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:])
}

// Keyspace lays out every store key under one namespace.
// The namespace is wrapped in a Redis hash tag so all keys of one cache land
// in the same cluster slot and multi-key commands stay legal.
type Keyspace struct {
	prefix string
}

// NewKeyspace creates a Keyspace for the namespace.
func NewKeyspace(namespace string) Keyspace {
	return Keyspace{prefix: "{" + namespace + "}:"}
}

// Prefix returns the string every key in this keyspace starts with.
func (k Keyspace) Prefix() string { return k.prefix }

// Entry returns the exact-match entry key for a cache key.
func (k Keyspace) Entry(key string) string { return k.prefix + "e:" + key }

// Vector returns the embedding record key for a cache key.
func (k Keyspace) Vector(key string) string { return k.prefix + "v:" + key }

// Index returns the recency sorted set key.
func (k Keyspace) Index() string { return k.prefix + "idx" }

// Sequence returns the insertion counter key.
func (k Keyspace) Sequence() string { return k.prefix + "seq" }

// Entries maps cache keys to entry keys.
func (k Keyspace) Entries(keys []string) []string {
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = k.Entry(key)
	}
	return out
}

// Vectors maps cache keys to embedding record keys.
func (k Keyspace) Vectors(keys []string) []string {
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = k.Vector(key)
	}
	return out
}
