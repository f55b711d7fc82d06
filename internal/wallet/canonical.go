package wallet

import (
	"strings"

	"github.com/tidwall/gjson"
)

// sentinels are the encodings wallets have used for "there is no session".
var sentinels = []string{"", "null", "undefined", "0", "false", "true", "NaN"}

var noSession = func() map[string]struct{} {
	set := make(map[string]struct{}, len(sentinels))
	for _, s := range sentinels {
		set[s] = struct{}{}
	}
	return set
}()

// NoSessionSentinels returns the textual ids that never denote a session.
func NoSessionSentinels() []string {
	return append([]string(nil), sentinels...)
}

// CanonicalSessionID trims raw and reports whether it names an active
// session. Sentinels yield ("", false).
func CanonicalSessionID(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	if _, sentinel := noSession[id]; sentinel {
		return "", false
	}
	return id, true
}

// canonicalSessionValue applies CanonicalSessionID to a decoded JSON value.
// Absent and null mean no session; numbers and booleans are judged by their
// text.
func canonicalSessionValue(v gjson.Result) (string, bool) {
	switch v.Type {
	case gjson.String:
		return CanonicalSessionID(v.Str)
	case gjson.Number:
		return CanonicalSessionID(v.Raw)
	case gjson.True:
		return CanonicalSessionID("true")
	case gjson.False:
		return CanonicalSessionID("false")
	default:
		return "", false
	}
}
