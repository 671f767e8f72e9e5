package pricing

import (
	"strings"

	"github.com/spf13/viper"
)

// ConfigProvider reads a single configuration value. The resolver consults
// it on every call, so configuration changes are picked up without restart.
type ConfigProvider interface {
	Lookup(key string) (string, bool)
}

// ViperProvider reads keys from a viper instance, which with AutomaticEnv
// covers both config files and process environment.
type ViperProvider struct {
	v *viper.Viper
}

// NewViperProvider wraps v. A nil v uses the global viper instance.
func NewViperProvider(v *viper.Viper) *ViperProvider {
	if v == nil {
		v = viper.GetViper()
	}
	return &ViperProvider{v: v}
}

// Lookup returns the value of key and whether it is set.
func (p *ViperProvider) Lookup(key string) (string, bool) {
	if !p.v.IsSet(key) {
		return "", false
	}
	return p.v.GetString(key), true
}

// MapProvider is a fixed in-memory configuration.
type MapProvider map[string]string

// Lookup returns the value of key and whether it is present.
func (m MapProvider) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// EnvVarName derives the environment variable consulted for sku: prefix
// followed by the SKU upper-cased, with every character outside [A-Z0-9]
// replaced by an underscore.
func EnvVarName(prefix, sku string) string {
	return prefix + strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		default:
			return '_'
		}
	}, sku)
}
