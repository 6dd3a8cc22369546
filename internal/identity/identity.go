// Package identity decides which Telegram senders the bot serves.
package identity

import (
	"net"
	"net/http"
)

// Allowlist holds the sender ids the bot answers to. The zero value
// allows nobody.
type Allowlist struct {
	ids map[int64]struct{}
}

// NewAllowlist creates an allowlist. Zero ids are ignored.
func NewAllowlist(ids ...int64) *Allowlist {
	a := &Allowlist{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		if id != 0 {
			a.ids[id] = struct{}{}
		}
	}
	return a
}

// Allowed reports whether senderID may use the bot.
func (a *Allowlist) Allowed(senderID int64) bool {
	if a == nil || senderID == 0 {
		return false
	}
	_, ok := a.ids[senderID]
	return ok
}

// IPFromRequest returns a normalized remote IP for request logging.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
