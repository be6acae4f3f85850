// Package connectivity blocks the bot while the internet is unreachable.
package connectivity

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"wisher/internal/config"
	"wisher/internal/retry"
)

// Prober performs one bounded reachability check.
type Prober interface {
	Probe(ctx context.Context) bool
}

type Guard struct {
	prober   Prober
	clock    retry.Clock
	interval time.Duration
	log      logrus.FieldLogger
}

func NewGuard(prober Prober, clock retry.Clock, log logrus.FieldLogger) *Guard {
	if clock == nil {
		clock = retry.SystemClock{}
	}
	return &Guard{
		prober:   prober,
		clock:    clock,
		interval: config.Poll,
		log:      log,
	}
}

// Probe never fails; any probe error counts as offline.
func (g *Guard) Probe(ctx context.Context) bool {
	if g.prober == nil {
		return true
	}
	return g.prober.Probe(ctx)
}

// Await blocks until Probe succeeds. There is no upper bound.
func (g *Guard) Await(ctx context.Context) error {
	for count := 1; ; count++ {
		if g.Probe(ctx) {
			if count > 1 {
				g.log.Info("Internet is restored good to go")
			}
			return nil
		}
		g.log.Warnf("Internet is not present retry second(s) %d...", count)
		if err := g.clock.Sleep(ctx, g.interval); err != nil {
			return err
		}
	}
}
