package common

import (
	"context"
	"fmt"
)

// BestEffort runs a side-channel call whose outcome must never affect the caller.
// Errors and panics are logged at WARN and swallowed.
func BestEffort(ctx context.Context, channel string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			FromContext(ctx).Warn("Side channel panicked",
				"channel", channel,
				"panic", fmt.Sprint(r))
		}
	}()

	if err := fn(ctx); err != nil {
		FromContext(ctx).Warn("Side channel call failed",
			"channel", channel,
			"error", err)
	}
}
