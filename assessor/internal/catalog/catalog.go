// Package catalog is the static lookup of safe temperature and humidity bands
// per (produce, environment class).
package catalog

import (
	"strings"

	"github.com/itzrealashwin/AnnaRaksha/assessor/internal/config"
	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

type key struct {
	produce string
	env     types.EnvironmentClass
}

// Entry is one band added on top of the built-in table.
type Entry struct {
	Produce     string
	Environment types.EnvironmentClass
	Range       types.SafeRange
}

// Catalog maps (produce, environment class) to a SafeRange. It is immutable
// after construction and safe for concurrent use.
type Catalog struct {
	ranges map[key]types.SafeRange
}

// New returns the built-in table with extra layered on top. An extra entry
// replaces a built-in one with the same key.
func New(extra ...Entry) *Catalog {
	c := &Catalog{ranges: make(map[key]types.SafeRange, len(builtin)*4+len(extra))}
	for produce, cr := range builtin {
		for env, rng := range cr.entries() {
			c.ranges[key{produce, env}] = rng
		}
	}
	for _, e := range extra {
		c.ranges[key{Normalize(e.Produce), e.Environment}] = e.Range
	}
	return c
}

// FromConfig builds a catalog with the validated safe_ranges entries of a
// config file layered over the built-in table.
func FromConfig(entries []config.SafeRangeEntry) *Catalog {
	extra := make([]Entry, 0, len(entries))
	for _, e := range entries {
		extra = append(extra, Entry{Produce: e.Produce, Environment: e.Environment, Range: e.Range()})
	}
	return New(extra...)
}

// Lookup returns the band for produce under env. ok is false when the
// combination is unknown; that is a valid answer, not an error.
func (c *Catalog) Lookup(produce string, env types.EnvironmentClass) (types.SafeRange, bool) {
	if produce == "" || env == "" {
		return types.SafeRange{}, false
	}
	rng, ok := c.ranges[key{Normalize(produce), env}]
	return rng, ok
}

// Len is the number of (produce, environment) entries.
func (c *Catalog) Len() int { return len(c.ranges) }

// Normalize lower-cases produce, trims it, and joins inner whitespace runs
// with underscores: " Sweet  Potato " -> "sweet_potato".
func Normalize(produce string) string {
	return strings.Join(strings.Fields(strings.ToLower(produce)), "_")
}
