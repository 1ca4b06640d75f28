// Package chat declares the interfaces the quest engine needs from the
// surrounding chat application. The engine never talks to a network; it
// hands lines to a Messenger and resolves identities through a Directory.
package chat

import "context"

// Messenger delivers a line of text to a channel or user. Delivery is
// fire-and-forget; failures are the transport's problem.
type Messenger interface {
	SendLine(ctx context.Context, target, text string)
}

// Directory maps between display names and stable user identifiers.
type Directory interface {
	ResolveUserID(ctx context.Context, displayName string) (string, error)
	DisplayNameFor(ctx context.Context, userID string) (string, error)
}
