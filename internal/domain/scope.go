package domain

import (
	"sort"
	"strings"
)

// Scope dimensions recorded on evidence and matched by overrides.
const (
	ScopeChain     = "chain"
	ScopeTimeframe = "timeframe"
	ScopeBucket    = "bucket"
	ScopeATier     = "a_tier"
	ScopeETier     = "e_tier"
	ScopeState     = "state"
)

// CloneScope copies a scope map. Nil stays nil.
func CloneScope(s map[string]string) map[string]string {
	if s == nil {
		return nil
	}
	c := make(map[string]string, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// ScopeContains reports whether every key/value of subset is present in ctx.
// The empty scope is contained in every context.
func ScopeContains(ctx, subset map[string]string) bool {
	for k, v := range subset {
		if ctx[k] != v {
			return false
		}
	}
	return true
}

// CanonicalScope renders a scope as "k1=v1,k2=v2" with sorted keys.
func CanonicalScope(s map[string]string) string {
	if len(s) == 0 {
		return ""
	}
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + s[k]
	}
	return strings.Join(parts, ",")
}
