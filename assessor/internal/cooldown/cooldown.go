// Package cooldown decides whether a batch is inside its post-assessment
// suppression window.
package cooldown

import (
	"time"

	"github.com/itzrealashwin/AnnaRaksha/pkg/types"
)

// Gate evaluates cooldown windows against its clock. It holds no state.
type Gate struct {
	now func() time.Time
}

// New returns a Gate on the wall clock.
func New() *Gate { return &Gate{now: time.Now} }

// NewWithClock returns a Gate that reads time from now.
func NewWithClock(now func() time.Time) *Gate { return &Gate{now: now} }

// IsSuppressed reports whether b.CooldownUntil is set and strictly in the future.
func (g *Gate) IsSuppressed(b types.Batch) bool {
	if b.CooldownUntil == nil {
		return false
	}
	return g.now().Before(*b.CooldownUntil)
}

// NextWindow returns now plus d; callers store it as the new CooldownUntil.
func (g *Gate) NextWindow(d time.Duration) time.Time {
	return g.now().Add(d)
}

// Now exposes the gate's clock so writers stamp LastAnalyzedAt from the same
// source as CooldownUntil.
func (g *Gate) Now() time.Time { return g.now() }
