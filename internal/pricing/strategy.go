package pricing

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"skrbl/internal/observability"
)

// Strategy is one lookup layer of the resolver.
type Strategy interface {
	Source() Source
	// Key names the table or variable consulted for sku.
	Key(sku string) string
	// Lookup returns a non-empty price id on a hit.
	Lookup(ctx context.Context, sku string, cfg ConfigProvider) (string, bool)
}

// StaticStrategy looks SKUs up in a compiled-in table.
type StaticStrategy struct {
	table map[string]string
}

// NewStaticStrategy copies table so later changes to it have no effect.
func NewStaticStrategy(table map[string]string) *StaticStrategy {
	t := make(map[string]string, len(table))
	for k, v := range table {
		t[k] = v
	}
	return &StaticStrategy{table: t}
}

func (s *StaticStrategy) Source() Source { return SourceStatic }

func (s *StaticStrategy) Key(string) string { return "static table" }

func (s *StaticStrategy) Lookup(_ context.Context, sku string, _ ConfigProvider) (string, bool) {
	return nonEmpty(s.table[sku])
}

// EnvDirectStrategy reads one variable per SKU, named by EnvVarName.
// Variables in reserved are resolver settings and never price ids.
type EnvDirectStrategy struct {
	prefix   string
	reserved map[string]struct{}
}

// NewEnvDirectStrategy uses prefix for variable names and skips the reserved keys.
func NewEnvDirectStrategy(prefix string, reserved ...string) *EnvDirectStrategy {
	r := make(map[string]struct{}, len(reserved))
	for _, k := range reserved {
		r[k] = struct{}{}
	}
	return &EnvDirectStrategy{prefix: prefix, reserved: r}
}

func (s *EnvDirectStrategy) Source() Source { return SourceEnvDirect }

func (s *EnvDirectStrategy) Key(sku string) string { return EnvVarName(s.prefix, sku) }

func (s *EnvDirectStrategy) Lookup(_ context.Context, sku string, cfg ConfigProvider) (string, bool) {
	key := s.Key(sku)
	if _, ok := s.reserved[key]; ok {
		return "", false
	}
	v, ok := cfg.Lookup(key)
	if !ok {
		return "", false
	}
	return nonEmpty(v)
}

// EnvJSONStrategy reads a JSON object mapping SKU to price id from one variable.
type EnvJSONStrategy struct {
	key string
}

// NewEnvJSONStrategy reads the map from variable key.
func NewEnvJSONStrategy(key string) *EnvJSONStrategy {
	return &EnvJSONStrategy{key: key}
}

func (s *EnvJSONStrategy) Source() Source { return SourceEnvJSON }

func (s *EnvJSONStrategy) Key(string) string { return s.key }

// Lookup treats malformed JSON and non-string values as misses.
func (s *EnvJSONStrategy) Lookup(ctx context.Context, sku string, cfg ConfigProvider) (string, bool) {
	raw, ok := cfg.Lookup(s.key)
	if !ok || strings.TrimSpace(raw) == "" {
		return "", false
	}

	var prices map[string]any
	if err := json.Unmarshal([]byte(raw), &prices); err != nil {
		observability.Logger.WarnContext(ctx, "ignoring malformed price map",
			slog.String("key", s.key),
			slog.String("error", err.Error()),
		)
		return "", false
	}

	v, ok := prices[sku].(string)
	if !ok {
		return "", false
	}
	return nonEmpty(v)
}

func nonEmpty(v string) (string, bool) {
	v = strings.TrimSpace(v)
	return v, v != ""
}
