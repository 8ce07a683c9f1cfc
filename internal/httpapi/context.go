package httpapi

import "context"

// serverBaseCtx is canceled on process shutdown so in-flight generation
// stops streaming instead of blocking server drain. Defaults to Background.
var serverBaseCtx = context.Background()

// SetBaseContext installs the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// joinContexts derives a context canceled when either parent is done. The
// cancel func must be called when the handler returns to release the
// watcher goroutine.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		defer cancel()
		select {
		case <-a.Done():
		case <-b.Done():
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
