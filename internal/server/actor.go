package server

import (
	"net/http"
	"strings"
)

const (
	headerActor     = "X-Actor"
	headerActorRole = "X-Actor-Role"
)

// actorFromRequest reads the caller-asserted identity. The engine does
// not authenticate; it records whatever the adapter asserts.
func actorFromRequest(r *http.Request) (actor string, role string) {
	return strings.TrimSpace(r.Header.Get(headerActor)),
		strings.TrimSpace(r.Header.Get(headerActorRole))
}
