// Package environment builds the environment variable sets handed to child services.
//
// Composition is a pure function of its inputs. Only keys named by a service's
// allow-list are forwarded from the host environment or the persisted user
// settings; everything else a service sees is produced explicitly from templates
// and flags.
package environment

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Set maps variable names to values.
type Set map[string]string

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Keys returns the variable names in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Environ renders s as sorted KEY=VALUE pairs suitable for exec.Cmd.Env.
func (s Set) Environ() []string {
	keys := s.Keys()
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+s[k])
	}
	return out
}

// Merge returns a copy of s with every entry of over applied on top.
func (s Set) Merge(over Set) Set {
	out := s.Clone()
	for k, v := range over {
		out[k] = v
	}
	return out
}

// FromEnviron parses KEY=VALUE pairs such as os.Environ().
func FromEnviron(environ []string) Set {
	out := make(Set, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Host snapshots the current process environment.
func Host() Set {
	return FromEnviron(os.Environ())
}

// AllowList names the keys that may be forwarded. An entry ending in "*" matches
// every key with that prefix.
type AllowList []string

// Allows reports whether key is covered by the list.
func (a AllowList) Allows(key string) bool {
	for _, pattern := range a {
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(key, prefix) {
				return true
			}
			continue
		}
		if pattern == key {
			return true
		}
	}
	return false
}

// Filter returns the entries of s allowed by the list.
func (a AllowList) Filter(s Set) Set {
	out := make(Set)
	for k, v := range s {
		if a.Allows(k) {
			out[k] = v
		}
	}
	return out
}

// FlagTokens are the literal strings a service expects for a boolean flag.
type FlagTokens struct {
	True  string `yaml:"true"`
	False string `yaml:"false"`
}

// PythonTokens render booleans the way Python services parse them.
var PythonTokens = FlagTokens{True: "True", False: "False"}

// RenderFlag renders b with the given tokens, falling back to PythonTokens.
func RenderFlag(b bool, tokens FlagTokens) string {
	if tokens.True == "" && tokens.False == "" {
		tokens = PythonTokens
	}
	if b {
		return tokens.True
	}
	return tokens.False
}

// String describes the set without revealing values of secret-looking keys.
func (s Set) String() string {
	var b strings.Builder
	for i, k := range s.Keys() {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%s", k, Mask(k, s[k]))
	}
	return b.String()
}

// Mask hides the value of keys that look like credentials.
func Mask(key, value string) string {
	upper := strings.ToUpper(key)
	for _, marker := range []string{"KEY", "SECRET", "TOKEN", "PASSWORD"} {
		if strings.Contains(upper, marker) {
			if value == "" {
				return ""
			}
			return "****"
		}
	}
	return value
}
