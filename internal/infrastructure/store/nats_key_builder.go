// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"encoding/base64"
	"errors"
	"regexp"
	"strings"

	"github.com/nats-io/nats.go"
)

// Common key prefixes
const (
	// Entity prefixes
	KeyPrefixRecording = "recording"
	KeyPrefixSchedule  = "schedule"
	KeyPrefixTrigger   = "trigger"

	// Index prefixes
	KeyPrefixIndex       = "index"
	KeyPrefixIndexStatus = "status"
)

// encodedTokenMarker starts a token holding a base64 encoded id. It can never start a
// plain token because plainToken excludes it.
const encodedTokenMarker = "="

var plainToken = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// KeyBuilder builds the dot separated NATS KV keys of the control plane. Keys are
// subject-like so that index lookups can use subject filters.
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with an optional prefix
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{
		prefix: prefix,
	}
}

// EntityKey builds a key for an entity (e.g., "recording.abc-defg-hij")
func (kb *KeyBuilder) EntityKey(entityType, id string) string {
	return kb.join(entityType, kb.EncodeToken(id))
}

// EntityFilter matches every key of an entity type.
func (kb *KeyBuilder) EntityFilter(entityType string) string {
	return kb.join(entityType, ">")
}

// IndexKey builds a key for an index (e.g., "index.status.recording.abc-defg-hij")
func (kb *KeyBuilder) IndexKey(indexType, indexValue, id string) string {
	return kb.join(KeyPrefixIndex, indexType, kb.EncodeToken(indexValue), kb.EncodeToken(id))
}

// IndexFilter matches every entry of one index value.
func (kb *KeyBuilder) IndexFilter(indexType, indexValue string) string {
	return kb.join(KeyPrefixIndex, indexType, kb.EncodeToken(indexValue), "*")
}

// IndexTypeFilter matches every entry of an index type.
func (kb *KeyBuilder) IndexTypeFilter(indexType string) string {
	return kb.join(KeyPrefixIndex, indexType, ">")
}

// IDFromKey returns the decoded id held in the last token of key.
func (kb *KeyBuilder) IDFromKey(key string) (string, error) {
	idx := strings.LastIndex(key, ".")
	if idx < 0 || idx == len(key)-1 {
		return "", nats.ErrInvalidKey
	}
	return kb.DecodeToken(key[idx+1:])
}

// IndexValueFromKey returns the decoded index value of an index key.
func (kb *KeyBuilder) IndexValueFromKey(key string) (string, error) {
	parts := strings.Split(strings.TrimPrefix(key, kb.prefixPart()), ".")
	if len(parts) != 4 || parts[0] != KeyPrefixIndex {
		return "", nats.ErrInvalidKey
	}
	return kb.DecodeToken(parts[2])
}

// EncodeToken turns an arbitrary id into a single key token. Ids made only of letters,
// digits, '-' and '_' are kept as they are so that keys stay readable.
func (kb *KeyBuilder) EncodeToken(id string) string {
	if plainToken.MatchString(id) {
		return id
	}
	return encodedTokenMarker + base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeToken reverses EncodeToken.
func (kb *KeyBuilder) DecodeToken(token string) (string, error) {
	if token == "" {
		return "", nats.ErrInvalidKey
	}
	if !strings.HasPrefix(token, encodedTokenMarker) {
		if !plainToken.MatchString(token) {
			return "", errors.New("invalid key token")
		}
		return token, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(token, encodedTokenMarker))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func (kb *KeyBuilder) prefixPart() string {
	if kb.prefix == "" {
		return ""
	}
	return kb.prefix + "."
}

func (kb *KeyBuilder) join(parts ...string) string {
	return kb.prefixPart() + strings.Join(parts, ".")
}
