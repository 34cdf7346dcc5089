package usecase

import (
	"math/rand"
	"strings"
	"time"
)

const (
	pacerMinDelay   = 2.0
	pacerMaxDelay   = 30.0
	pacerStartDelay = 3.0
)

// pacer is the adaptive inter-application delay. It speeds up while the
// board accepts submissions and backs off hard when responses look like
// rate limiting.
type pacer struct {
	delay float64
	randF func() float64
}

func newPacer() *pacer {
	return &pacer{delay: pacerStartDelay, randF: rand.Float64}
}

func (p *pacer) uniform(lo, hi float64) float64 {
	return lo + p.randF()*(hi-lo)
}

// afterSuccess shrinks the delay and returns how long to sleep.
func (p *pacer) afterSuccess() time.Duration {
	p.delay = p.delay * 0.8
	if p.delay < pacerMinDelay {
		p.delay = pacerMinDelay
	}
	return time.Duration((p.delay + p.uniform(0, 2)) * float64(time.Second))
}

// afterError grows the delay. Rate-limit shaped errors sleep the longest.
func (p *pacer) afterError(errMsg string) time.Duration {
	p.delay = p.delay * 1.5
	if p.delay > pacerMaxDelay {
		p.delay = pacerMaxDelay
	}
	if strings.Contains(errMsg, "429") || strings.Contains(errMsg, "403") {
		return time.Duration((p.delay + p.uniform(10, 30)) * float64(time.Second))
	}
	return time.Duration((p.delay*0.5 + p.uniform(5, 15)) * float64(time.Second))
}
