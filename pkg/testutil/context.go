package testutil

import (
	"context"
	"time"

	id "famledger/pkg/domain"
	"famledger/pkg/requestcontext"
)

// ActorContext builds a context carrying an authenticated actor, simulating
// what the auth middleware does for real requests.
func ActorContext(actorID id.UserID) context.Context {
	return requestcontext.WithActorID(context.Background(), actorID)
}

// ActorContextAt builds an actor context pinned to a fixed request time.
// Use this to make cooling-period and timestamp assertions exact.
func ActorContextAt(actorID id.UserID, now time.Time) context.Context {
	ctx := ActorContext(actorID)
	return requestcontext.WithTime(ctx, now)
}

// SystemContextAt builds an unauthenticated context at a fixed time, as seen
// by scheduler-triggered calls.
func SystemContextAt(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}
