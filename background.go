package switcher

import (
	"sync"

	"github.com/rs/zerolog"
)

// background runs fire-and-forget work and keeps track of it, so it can be waited for.
type background struct {
	wg  sync.WaitGroup
	log zerolog.Logger
}

// Go runs fn in a new goroutine. Panics are recovered and logged.
func (b *background) Go(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.recover()
		fn()
	}()
}

func (b *background) recover() {
	if err := recover(); err != nil {
		b.log.WithLevel(zerolog.PanicLevel).Interface("error", err).Msg("Panic in background task")
	}
}

// Wait blocks until all work has finished, including work started by other work.
func (b *background) Wait() {
	b.wg.Wait()
}
