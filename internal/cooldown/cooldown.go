package cooldown

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Kind separates the two throttled request types; each keeps its own stamp.
type Kind string

const (
	KindSubmit Kind = "submit"
	KindSample Kind = "sample"
)

type key struct {
	user    string
	problem string
	kind    Kind
}

// Guard tracks the last allowed request per (user, problem, kind) and
// rejects requests inside the cooldown window. Check-and-stamp is atomic
// per key, so two concurrent requests cannot both pass.
type Guard struct {
	stamps *xsync.MapOf[key, time.Time]
	now    func() time.Time
}

func NewGuard() *Guard {
	return &Guard{
		stamps: xsync.NewMapOf[key, time.Time](),
		now:    time.Now,
	}
}

// Allow reports whether a request may proceed. An allowed request records
// its timestamp; a rejected one does not, and retryAfter tells how long
// until the key opens up. A zero window always allows.
func (g *Guard) Allow(user, problem string, kind Kind, window time.Duration) (allowed bool, retryAfter time.Duration) {
	if window <= 0 {
		return true, 0
	}

	now := g.now()
	k := key{user: user, problem: problem, kind: kind}

	g.stamps.Compute(k, func(last time.Time, loaded bool) (time.Time, bool) {
		if loaded && now.Sub(last) < window {
			retryAfter = last.Add(window).Sub(now)
			return last, false
		}
		allowed = true
		return now, false
	})

	return allowed, retryAfter
}

// Revoke removes the stamp charged by an earlier Allow. Callers use it when
// the allowed request failed downstream, so the user does not lose the
// window to an error that was not theirs.
func (g *Guard) Revoke(user, problem string, kind Kind) {
	g.stamps.Delete(key{user: user, problem: problem, kind: kind})
}
