package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/kirillkom/resume-ranker/internal/core/ports"
)

const defaultPingTimeout = 2 * time.Second

type ReadinessUseCase struct {
	pingers []ports.HealthPinger
	timeout time.Duration
}

func NewReadinessUseCase(timeout time.Duration, pingers ...ports.HealthPinger) *ReadinessUseCase {
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	return &ReadinessUseCase{pingers: pingers, timeout: timeout}
}

// Ready pings every dependency in parallel. With no dependencies configured the
// service is always ready.
func (uc *ReadinessUseCase) Ready(ctx context.Context) ports.Readiness {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		errors = map[string]string{}
	)
	for _, p := range uc.pingers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pingCtx, cancel := context.WithTimeout(ctx, uc.timeout)
			defer cancel()
			if err := p.Ping(pingCtx); err != nil {
				mu.Lock()
				errors[p.Name()] = err.Error()
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(errors) == 0 {
		return ports.Readiness{Ready: true}
	}
	return ports.Readiness{Ready: false, Errors: errors}
}
