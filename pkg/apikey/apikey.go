// Package apikey models the per-client API key record that gates
// fallback usage, logging, and daily request caps, mirroring the
// fields the locate views look up per request.
package apikey

import "crypto/subtle"

// APIKey describes the permissions and quotas attached to one client
// credential.
type APIKey struct {
	Name          string
	ValidKey      string
	AllowFallback bool
	LogLocate     bool
	LogRegion     bool
	LogSubmit     bool
	MaxRequests   int // 0 means unlimited
}

// ShouldLog reports whether queries of the given API type should be
// logged/metered for this key.
func (k APIKey) ShouldLog(apiType string) bool {
	switch apiType {
	case "locate":
		return k.LogLocate
	case "region":
		return k.LogRegion
	case "submit":
		return k.LogSubmit
	default:
		return false
	}
}

// SecureCompare does a constant-time comparison of a presented key
// against the stored key, to avoid timing side-channels on lookup.
func SecureCompare(presented, stored string) bool {
	if len(presented) != len(stored) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}

// Store resolves a raw key string to an APIKey record. A production
// deployment backs this with the same SQL/cache layer the views use;
// this is the contract the query/source pipeline calls against.
type Store interface {
	Lookup(key string) (APIKey, bool)
}

// StaticStore is an in-memory Store, useful for local deployments and
// tests where keys are provisioned ahead of time rather than through
// the (out-of-scope) admin tooling.
type StaticStore struct {
	keys map[string]APIKey
}

// NewStaticStore builds a StaticStore from a slice of keys, indexed by
// ValidKey.
func NewStaticStore(keys []APIKey) *StaticStore {
	m := make(map[string]APIKey, len(keys))
	for _, k := range keys {
		m[k.ValidKey] = k
	}
	return &StaticStore{keys: m}
}

// Lookup finds the APIKey matching presented, using a constant-time
// comparison against each candidate to resist timing attacks.
func (s *StaticStore) Lookup(presented string) (APIKey, bool) {
	for stored, key := range s.keys {
		if SecureCompare(presented, stored) {
			return key, true
		}
	}
	return APIKey{}, false
}
