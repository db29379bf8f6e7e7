package mail

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultAsyncTimeout = 30 * time.Second

// Async hands messages to a background goroutine and returns immediately.
// Delivery failures are logged, never returned.
type Async struct {
	next    Sender
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(next Sender, log *zap.Logger) *Async {
	if log == nil {
		log = zap.NewNop()
	}
	return &Async{next: next, log: log, timeout: defaultAsyncTimeout}
}

func (a *Async) Send(ctx context.Context, msg Message) error {
	// Detach from the request so delivery outlives the response.
	ctx = context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		if err := a.next.Send(ctx, msg); err != nil {
			a.log.Warn("mail delivery failed",
				zap.String("to", msg.To),
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Wait blocks until queued deliveries finish or ctx is done.
func (a *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
