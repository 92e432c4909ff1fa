package orchestrator

import (
	"context"

	sovereignerr "github.com/Aman-CERP/sovereign/internal/errors"
)

// ChatBackend is the opaque chat collaborator spec.md's environment notes
// describe ("a language-model backend URL/key, opaque to this spec").
// Bare text and /ask commands are forwarded here; no concrete backend is
// part of this daemon's core scope.
type ChatBackend interface {
	Ask(ctx context.Context, question string) (string, error)
}

// NoopChatBackend reports the backend as unavailable rather than silently
// dropping the request — the application-error path spec §7 kind 4 names
// for "backend unavailable" failures, which is why it's surfaced as a
// *sovereignerr.SovereignError: callers can check IsRetryable instead of
// matching on message text.
type NoopChatBackend struct{}

func (NoopChatBackend) Ask(ctx context.Context, question string) (string, error) {
	return "", sovereignerr.BackendError("chat backend not configured", nil)
}

var _ ChatBackend = NoopChatBackend{}
