// Package fingerprint derives stable conversation keys from recent user messages.
//
// A fingerprint is the CRC32 checksum of a window of the newest user messages.
// Window i (0 = newest) spans the reversed user messages [i, min(size, i+2)),
// joined oldest-to-newest with the ASCII unit separator. At most MaxFingerprints
// windows are produced, newest first. The window policy is tunable; nothing else
// depends on its exact shape beyond determinism.
package fingerprint

import (
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/kailas-cloud/ragpack/internal/domain/message"
)

// MaxFingerprints is the number of windows derived per conversation.
const MaxFingerprints = 3

// baseWindow is the length of the newest window.
const baseWindow = 2

// Separator joins message texts inside a window.
const Separator = "\x1f"

// Fingerprint is a 32-bit conversation key.
type Fingerprint uint32

// String renders the fingerprint as 8 lowercase hex digits, the form used in storage keys.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%08x", uint32(f))
}

// Compute returns up to MaxFingerprints fingerprints, newest window first.
// Conversations without user messages yield an empty slice. Pure.
func Compute(msgs []message.Message) []Fingerprint {
	users := message.FilterRole(msgs, message.User)
	size := len(users)
	if size == 0 {
		return []Fingerprint{}
	}

	reversed := make([]string, size)
	for i, m := range users {
		reversed[size-1-i] = m.Content()
	}

	n := min(size, MaxFingerprints)
	out := make([]Fingerprint, 0, n)
	for i := 0; i < n; i++ {
		end := min(size, i+baseWindow)
		out = append(out, Of(window(reversed[i:end])))
	}
	return out
}

// Of hashes an already-joined window.
func Of(s string) Fingerprint {
	return Fingerprint(crc32.ChecksumIEEE([]byte(s)))
}

// window joins newest-first texts in oldest-to-newest order.
func window(newestFirst []string) string {
	parts := make([]string, len(newestFirst))
	for i, s := range newestFirst {
		parts[len(newestFirst)-1-i] = s
	}
	return strings.Join(parts, Separator)
}
