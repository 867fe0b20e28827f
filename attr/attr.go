// Package attr parses and formats tag attribute strings.
//
// An attribute string is a list of key=value pairs separated by '&'
// (';' is accepted too), for example:
//
//	protocol=ab_eip&gateway=10.1.2.3&path=1,0&cpu=LGX&elem_size=4&elem_count=1&name=Counter
//
// Keys are case sensitive. The engine remains the authority on what a
// given protocol accepts; this package only checks the syntax.
package attr

import (
	"fmt"
	"strconv"
	"strings"
)

// Common attribute keys.
const (
	KeyProtocol    = "protocol"
	KeyGateway     = "gateway"
	KeyPath        = "path"
	KeyCPU         = "cpu"
	KeyName        = "name"
	KeyElemSize    = "elem_size"
	KeyElemCount   = "elem_count"
	KeyReadCacheMS = "read_cache_ms"
	KeyDebug       = "debug"
)

type pair struct {
	key   string
	value string
}

// Attributes is an ordered set of key/value pairs.
type Attributes struct {
	pairs []pair
}

// Parse splits an attribute string into its pairs.
// A segment without '=' or with an empty key is an error, as is a
// string that does not name a protocol.
func Parse(s string) (Attributes, error) {
	var a Attributes

	segments := strings.FieldsFunc(s, func(r rune) bool {
		return r == '&' || r == ';'
	})

	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		key, value, ok := strings.Cut(seg, "=")
		if !ok {
			return Attributes{}, fmt.Errorf("attribute %q: missing '='", seg)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return Attributes{}, fmt.Errorf("attribute %q: empty key", seg)
		}
		a.Set(key, strings.TrimSpace(value))
	}

	if a.Get(KeyProtocol) == "" {
		return Attributes{}, fmt.Errorf("attribute string has no %s", KeyProtocol)
	}

	return a, nil
}

// Get returns the value for key, or "" if absent.
func (a Attributes) Get(key string) string {
	for _, p := range a.pairs {
		if p.key == key {
			return p.value
		}
	}
	return ""
}

// Has reports whether key is present.
func (a Attributes) Has(key string) bool {
	for _, p := range a.pairs {
		if p.key == key {
			return true
		}
	}
	return false
}

// Int returns key as an integer, def if absent.
func (a Attributes) Int(key string, def int) (int, error) {
	v := a.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("attribute %s=%q: %w", key, v, err)
	}
	return n, nil
}

// Set replaces the value of key, appending it if new.
func (a *Attributes) Set(key, value string) {
	for i := range a.pairs {
		if a.pairs[i].key == key {
			a.pairs[i].value = value
			return
		}
	}
	a.pairs = append(a.pairs, pair{key: key, value: value})
}

// Keys returns the keys in insertion order.
func (a Attributes) Keys() []string {
	keys := make([]string, len(a.pairs))
	for i, p := range a.pairs {
		keys[i] = p.key
	}
	return keys
}

// Len returns the number of pairs.
func (a Attributes) Len() int {
	return len(a.pairs)
}

// String returns the canonical '&'-joined form.
func (a Attributes) String() string {
	parts := make([]string, len(a.pairs))
	for i, p := range a.pairs {
		parts[i] = p.key + "=" + p.value
	}
	return strings.Join(parts, "&")
}

// Build composes an attribute string from a base string and overrides.
// Overrides are applied in the given key order.
func Build(base string, keys []string, overrides map[string]string) (string, error) {
	a, err := Parse(base)
	if err != nil {
		return "", err
	}
	for _, k := range keys {
		if v, ok := overrides[k]; ok {
			a.Set(k, v)
		}
	}
	return a.String(), nil
}
