package presence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	anonPrefix    = "anon_"
	anonSuffixLen = 8
)

// newAnonID mints an anonymous id of the form anon_<unixMillis>_<8 hex>.
func newAnonID(now time.Time) string {
	return fmt.Sprintf("%s%d_%s", anonPrefix, now.UnixMilli(), uuid.NewString()[:anonSuffixLen])
}

// IsAnonymous reports whether id has the exact shape newAnonID produces.
// Usernames that merely start with anon_ are registered identities.
func IsAnonymous(id string) bool {
	_, ok := anonMintedAt(id)
	return ok
}

// anonMintedAt extracts the embedded timestamp. ok is false for ids that
// were not minted by newAnonID.
func anonMintedAt(id string) (time.Time, bool) {
	rest, found := strings.CutPrefix(id, anonPrefix)
	if !found {
		return time.Time{}, false
	}
	ms, suffix, found := strings.Cut(rest, "_")
	if !found || !allDigits(ms) || !isHex(suffix, anonSuffixLen) {
		return time.Time{}, false
	}
	v, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(v), true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
