package config

import (
	"testing"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformEnv(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CB__LOCALE__DEFAULT", "locale.default"},
		{"CB__SESSION__TOKEN_EXPIRATION", "session.tokenExpiration"},
		{"CB__NAME", "name"},
		{"CB__AUTH__GOOGLE__CLIENT_ID", "auth.google.clientId"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TransformEnv(tt.in))
	}
}

func TestFindSimilarKeys(t *testing.T) {
	RegisterConfigKeys(
		ConfigKeyInfo{Key: "locale.default", Type: "string"},
		ConfigKeyInfo{Key: "locale.supported", Type: "[]string"},
		ConfigKeyInfo{Key: "session.signInPath", Type: "string"},
	)

	suggestions := FindSimilarKeys("locale.defualt", 3)
	require.NotEmpty(t, suggestions)
	assert.Equal(t, "locale.default", suggestions[0])
}

func TestValidateConfigKeys(t *testing.T) {
	RegisterConfigKeys(
		ConfigKeyInfo{Key: "locale.default", Type: "string"},
	)

	k := koanf.New(".")
	require.NoError(t, k.Load(confmap.Provider(map[string]interface{}{
		"locale.default": "en",
		"locale.defalt":  "es",
	}, "."), nil))

	warnings := ValidateConfigKeys(k)
	require.Len(t, warnings, 1)
	assert.Equal(t, "locale.defalt", warnings[0].Key)
	assert.Contains(t, warnings[0].Suggestions, "locale.default")
}

func TestHasRegisteredPrefix(t *testing.T) {
	RegisterConfigKey(ConfigKeyInfo{Key: "myapp", Type: "namespace"})
	assert.True(t, HasRegisteredPrefix("myapp.feature.enabled"))
	assert.False(t, HasRegisteredPrefix("otherapp.feature"))
}
