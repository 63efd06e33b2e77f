package config

import (
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// ConfigKeyInfo contains metadata about a known configuration key.
type ConfigKeyInfo struct {
	Key         string      // The full config key path (e.g., "locale.default")
	Description string      // Human-readable description of what this config does
	Type        string      // Type hint: "string", "int", "bool", "duration", "[]string", etc.
	Default     interface{} // Optional default value
	Deprecated  bool        // If true, this key is deprecated
	ReplacedBy  string      // If deprecated, the new key to use instead
}

// registry holds all known configuration keys.
var (
	registry   = make(map[string]ConfigKeyInfo)
	registryMu sync.RWMutex
)

// RegisterConfigKey registers a known configuration key with metadata.
func RegisterConfigKey(info ConfigKeyInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[info.Key] = info
}

// RegisterConfigKeys registers multiple configuration keys at once.
func RegisterConfigKeys(infos ...ConfigKeyInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, info := range infos {
		registry[info.Key] = info
	}
}

// LookupConfigKey returns metadata for a registered config key.
func LookupConfigKey(key string) (ConfigKeyInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, exists := registry[key]
	return info, exists
}

// AllRegisteredKeys returns all registered config keys sorted alphabetically.
func AllRegisteredKeys() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FindSimilarKeys finds registered keys that are similar to the given key.
// Returns up to maxResults keys sorted by similarity (most similar first).
// Uses Levenshtein distance with a bonus for keys sharing a namespace prefix.
func FindSimilarKeys(key string, maxResults int) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	type scored struct {
		key   string
		score int // Lower is better
	}

	var candidates []scored
	keyPrefix := getPrefix(key)

	for registeredKey := range registry {
		score := calculateSimilarity(key, registeredKey, keyPrefix)
		if score <= 3 {
			candidates = append(candidates, scored{registeredKey, score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score < candidates[j].score
	})

	result := make([]string, 0, maxResults)
	for i := 0; i < len(candidates) && i < maxResults; i++ {
		result = append(result, candidates[i].key)
	}

	return result
}

// calculateSimilarity returns a similarity score between two keys. Lower
// scores are more similar.
func calculateSimilarity(key1, key2, key1Prefix string) int {
	distance := levenshtein.ComputeDistance(key1, key2)

	// Keys in the same namespace are more likely to be what was meant.
	key2Prefix := getPrefix(key2)
	if key1Prefix != "" && key1Prefix == key2Prefix {
		if distance > 0 {
			distance--
		}
	}

	return distance
}

// getPrefix extracts the prefix of a hierarchical key. For
// "locale.supported", returns "locale".
func getPrefix(key string) string {
	lastDot := strings.LastIndex(key, ".")
	if lastDot == -1 {
		return ""
	}
	return key[:lastDot]
}

// HasRegisteredPrefix checks if any registered key is a prefix of the given
// key. Used to allow unknown keys under registered namespaces.
func HasRegisteredPrefix(key string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()

	parts := strings.Split(key, ".")
	for i := 1; i < len(parts); i++ {
		prefix := strings.Join(parts[:i], ".")
		if _, exists := registry[prefix]; exists {
			return true
		}
	}
	return false
}
