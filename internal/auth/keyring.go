package auth

import (
	"fmt"
	"sort"
	"strings"
)

// MinSecretLength is the shortest HMAC secret accepted into a key ring.
const MinSecretLength = 32

// LegacyKID is the key id assigned to a single JWT_SECRET.
const LegacyKID = "default"

// Keyring maps key ids to HS256 secrets. Tokens are signed with the active
// key; any key in the ring verifies.
type Keyring struct {
	keys   map[string][]byte
	active string
}

// NewKeyring validates keys and the active id.
func NewKeyring(keys map[string][]byte, activeKID string) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("key ring is empty")
	}
	ring := &Keyring{keys: make(map[string][]byte, len(keys)), active: activeKID}
	for kid, secret := range keys {
		if kid == "" {
			return nil, fmt.Errorf("key id must not be empty")
		}
		if len(secret) < MinSecretLength {
			return nil, fmt.Errorf("key %q: secret must be at least %d bytes", kid, MinSecretLength)
		}
		ring.keys[kid] = append([]byte(nil), secret...)
	}
	if ring.active == "" && len(ring.keys) == 1 {
		for kid := range ring.keys {
			ring.active = kid
		}
	}
	if _, ok := ring.keys[ring.active]; !ok {
		return nil, fmt.Errorf("active key id %q not in key ring", ring.active)
	}
	return ring, nil
}

// LoadKeyring builds a ring from a "kid:secret,kid:secret" list, falling back
// to a single legacy secret when the list is empty.
func LoadKeyring(encoded, activeKID, legacySecret string) (*Keyring, error) {
	keys := map[string][]byte{}
	for _, part := range strings.Split(encoded, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kid, secret, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("malformed key entry %q, want kid:secret", kid)
		}
		kid = strings.TrimSpace(kid)
		if _, dup := keys[kid]; dup {
			return nil, fmt.Errorf("duplicate key id %q", kid)
		}
		keys[kid] = []byte(secret)
	}
	if len(keys) == 0 && legacySecret != "" {
		keys[LegacyKID] = []byte(legacySecret)
		if activeKID == "" {
			activeKID = LegacyKID
		}
	}
	return NewKeyring(keys, activeKID)
}

// Active returns the signing key.
func (k *Keyring) Active() (string, []byte) {
	return k.active, k.keys[k.active]
}

// Lookup returns the secret for kid.
func (k *Keyring) Lookup(kid string) ([]byte, bool) {
	secret, ok := k.keys[kid]
	return secret, ok
}

// KIDs lists the configured key ids in sorted order.
func (k *Keyring) KIDs() []string {
	out := make([]string, 0, len(k.keys))
	for kid := range k.keys {
		out = append(out, kid)
	}
	sort.Strings(out)
	return out
}
