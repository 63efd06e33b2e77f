package config

import (
	"fmt"

	"github.com/knadh/koanf/v2"
)

// ValidationWarning represents a configuration warning for unknown or
// potentially misspelled keys.
type ValidationWarning struct {
	Key         string
	Suggestions []string
}

func (w ValidationWarning) String() string {
	msg := fmt.Sprintf("'%s' is not a known config key", w.Key)
	if len(w.Suggestions) > 0 {
		if len(w.Suggestions) == 1 {
			msg += fmt.Sprintf(". Did you mean '%s'?", w.Suggestions[0])
		} else {
			msg += ". Did you mean one of these?\n"
			for _, suggestion := range w.Suggestions {
				msg += fmt.Sprintf("    - %s\n", suggestion)
			}
		}
	}
	return msg
}

// ValidateConfigKeys checks all loaded configuration keys against the
// registry and returns warnings for unknown keys with suggestions for
// similar keys.
func ValidateConfigKeys(config *koanf.Koanf) []ValidationWarning {
	loadedKeys := config.Keys()
	var warnings []ValidationWarning

	for _, key := range loadedKeys {
		if info, exists := LookupConfigKey(key); exists {
			if info.Deprecated {
				warnings = append(warnings, ValidationWarning{
					Key:         key,
					Suggestions: []string{info.ReplacedBy},
				})
			}
			continue
		}

		// Namespace prefixes registered by applications suppress warnings
		// for their sub-keys.
		if HasRegisteredPrefix(key) {
			continue
		}

		warnings = append(warnings, ValidationWarning{
			Key:         key,
			Suggestions: FindSimilarKeys(key, 3),
		})
	}

	return warnings
}
