// Package utils provides shared helpers used on both sides of the renderer
// bridge: reveal easing/stagger math and session id generation.
//
// Go Learning Note — "pkg/" Directory Convention:
// Code under pkg/ is importable by external projects, unlike internal/ which
// the compiler keeps private to this module. It is a community convention,
// not a language feature; these helpers live here because an embedding map
// client may want the identical easing curves and id format on its end.
package utils

import (
	"github.com/google/uuid"
)

// GenerateID mints a session identifier as a v4 (random) UUID string.
// Sessions are created by independent clients with no coordination between
// them, so ids must be generatable concurrently without a central counter and
// unguessable enough to back the ownership checks on the session routes —
// both properties a v4 UUID carries.
func GenerateID() string {
	return uuid.New().String()
}
