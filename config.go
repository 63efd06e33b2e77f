package portal

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/carebridge/portal/internal/config"
)

// Filename of the standard configuration file.
const ConfigFile = "carebridge.yaml"

// ConfigKeyInfo contains metadata about a known configuration key.
// This is re-exported from internal/config for public API use.
type ConfigKeyInfo = config.ConfigKeyInfo

// Config is a global koanf instance used to access application level
// configuration options.
//
// Config is loaded in the following order (later sources override earlier):
// 1. Built-in defaults (in init())
// 2. Auto-discovered carebridge.yaml (in init())
// 3. Environment variables with CB__ prefix (in init())
// 4. Additional sources loaded via LoadConfigFile() or LoadConfigDefaults()
//
// Environment variable transformation:
//   - CB__SESSION__TOKEN_EXPIRATION → session.tokenExpiration
//   - CB__LOCALE__DEFAULT → locale.default
var Config = koanf.New(".")

func init() {
	registerCoreConfigKeys()

	// Look for a carebridge.yaml file in the current directory or any parent.
	if cfg := config.SearchForConfig(ConfigFile, "."); cfg != "" {
		if err := Config.Load(file.Provider(cfg), yaml.Parser()); err != nil {
			panic("error loading config: " + err.Error())
		}
	}

	// Load environment variables with the prefix CB__.
	if err := Config.Load(env.Provider("CB__", ".", config.TransformEnv), nil); err != nil {
		panic("error loading env config: " + err.Error())
	}
}

// RegisterConfigKey registers a known configuration key with metadata. This
// should be called by core code and plugins to document expected config keys.
func RegisterConfigKey(info ConfigKeyInfo) {
	config.RegisterConfigKey(info)
}

// RegisterConfigKeys registers multiple configuration keys at once.
func RegisterConfigKeys(infos ...ConfigKeyInfo) {
	config.RegisterConfigKeys(infos...)
}

// LoadConfigFile loads additional configuration from a YAML file into the
// global Config instance.
func LoadConfigFile(path string) {
	if err := Config.Load(file.Provider(path), yaml.Parser()); err != nil {
		panic("error loading config file '" + path + "': " + err.Error())
	}
}

// LoadConfigDefaults loads default configuration values into the global
// Config instance. Call this before registering plugins to provide
// application-specific defaults that can be overridden by files or env vars.
func LoadConfigDefaults(defaults map[string]interface{}) {
	if err := Config.Load(confmap.Provider(defaults, "."), nil); err != nil {
		panic("error loading config defaults: " + err.Error())
	}
}

// ValidateConfig checks all loaded configuration keys against the known-key
// registry and returns human readable warnings for unknown or deprecated
// keys, with suggestions for likely misspellings.
func ValidateConfig() []string {
	warnings := config.ValidateConfigKeys(Config)
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.String()
	}
	return out
}

// ConfigString returns the string value for the given key.
func ConfigString(key string) string {
	return Config.String(key)
}

// ConfigInt returns the int value for the given key.
func ConfigInt(key string) int {
	return Config.Int(key)
}

// ConfigBool returns the bool value for the given key.
func ConfigBool(key string) bool {
	return Config.Bool(key)
}

// ConfigDuration returns the duration value for the given key. Duration
// strings like "5m", "1h", "30s" are parsed automatically.
func ConfigDuration(key string) time.Duration {
	return Config.Duration(key)
}

// ConfigStrings returns the string slice value for the given key.
func ConfigStrings(key string) []string {
	return Config.Strings(key)
}

// ConfigExists checks if the given key exists in the configuration.
func ConfigExists(key string) bool {
	return Config.Exists(key)
}

// registerCoreConfigKeys registers core configuration keys with their
// defaults. Called from init() before any config loading happens.
func registerCoreConfigKeys() {
	config.RegisterConfigKeys(
		ConfigKeyInfo{
			Key:         "name",
			Description: "Application name, used in log scopes",
			Type:        "string",
			Default:     "carebridge",
		},
		ConfigKeyInfo{
			Key:         "locale.default",
			Description: "Default display locale and the language assigned to newly provisioned profiles",
			Type:        "string",
			Default:     "en",
		},
		ConfigKeyInfo{
			Key:         "locale.supported",
			Description: "Locales the client ships translations for",
			Type:        "[]string",
			Default:     []string{"en", "es", "fr", "hi", "zh"},
		},
		ConfigKeyInfo{
			Key:         "session.signInPath",
			Description: "Path of the sign-in entry point used by route guard redirects",
			Type:        "string",
			Default:     "/login",
		},
	)

	defaults := map[string]interface{}{
		"name":               "carebridge",
		"locale.default":     "en",
		"locale.supported":   []string{"en", "es", "fr", "hi", "zh"},
		"session.signInPath": "/login",
	}
	if err := Config.Load(confmap.Provider(defaults, "."), nil); err != nil {
		panic("error loading built-in defaults: " + err.Error())
	}
}
