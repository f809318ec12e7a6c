// ABOUTME: Sentinel errors for the sync engine public surface

package engine

import "errors"

// ErrNoConversation is returned by Send when no conversation is open.
var ErrNoConversation = errors.New("no open conversation")
