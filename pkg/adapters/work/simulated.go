package work

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taskgrid/taskgrid/pkg/domain"
	"github.com/taskgrid/taskgrid/pkg/ports"
)

// SimulatedConfig configures the simulated work unit.
type SimulatedConfig struct {
	// Duration is how long each task pretends to work.
	Duration time.Duration

	// FailureRate is the probability in [0, 1] that an attempt fails.
	FailureRate float64

	// Seed fixes the random source. Zero means time-seeded.
	Seed int64

	Logger *zap.Logger
}

// NewSimulated returns a work unit that sleeps for the configured
// duration and fails randomly at the configured rate. It stands in for
// a real worker when none is plugged in.
func NewSimulated(cfg SimulatedConfig) ports.WorkUnit {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	var mu sync.Mutex

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, task *domain.Task) (string, error) {
		logger.Debug("simulating work",
			zap.String("task_id", task.ID),
			zap.String("title", task.Title),
			zap.Duration("duration", cfg.Duration))

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(cfg.Duration):
		}

		mu.Lock()
		failed := rng.Float64() < cfg.FailureRate
		mu.Unlock()

		if failed {
			return "", fmt.Errorf("simulated failure for task %s", task.ID)
		}

		return fmt.Sprintf("completed %s", task.Title), nil
	}
}
