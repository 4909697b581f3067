// Package threadkey derives the deduplication key for inbound message threads.
package threadkey

import (
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	Prefix = "thread_"

	participantSep = ","
	messageSep     = "|"
)

// Normalize lowercases and trims participant addresses, drops blanks and
// returns them sorted with duplicates removed. The input is not modified.
func Normalize(participants []string) []string {
	out := make([]string, 0, len(participants))
	for _, p := range participants {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Generate returns "thread_<base36>" for the message id and participant set.
// The result does not depend on participant order.
func Generate(messageID string, participants []string) string {
	input := strings.TrimSpace(messageID) + messageSep + strings.Join(Normalize(participants), participantSep)
	return Prefix + strconv.FormatUint(xxhash.Sum64String(input), 36)
}

// Valid reports whether key looks like a generated thread key.
func Valid(key string) bool {
	rest, ok := strings.CutPrefix(key, Prefix)
	if !ok || rest == "" {
		return false
	}
	_, err := strconv.ParseUint(rest, 36, 64)
	return err == nil
}
