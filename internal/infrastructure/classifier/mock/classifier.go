package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/kirillkom/crop-disease-analyzer/internal/core/domain"
)

const Name = "mock"

// Classifier is a demo double for environments without a model artifact. It
// ignores the image and returns a random distribution that passes the
// plausibility gate.
type Classifier struct {
	labels []string

	mu  sync.Mutex
	rng *rand.Rand
}

func New(labels []string, seed int64) *Classifier {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Classifier{
		labels: append([]string(nil), labels...),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (c *Classifier) Name() string {
	return Name
}

func (c *Classifier) Labels() []string {
	return append([]string(nil), c.labels...)
}

func (c *Classifier) Classify(ctx context.Context, _ domain.ImageTensor) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := len(c.labels)
	if n < 3 {
		return nil, fmt.Errorf("mock classifier needs at least 3 labels, got %d", n)
	}

	c.mu.Lock()
	top := c.rng.Intn(n)
	confidence := 0.7 + c.rng.Float64()*0.2
	order := c.rng.Perm(n)
	c.mu.Unlock()

	rest := 1 - confidence
	probs := make([]float64, n)
	probs[top] = confidence

	runnersUp := make([]int, 0, n-1)
	for _, idx := range order {
		if idx != top {
			runnersUp = append(runnersUp, idx)
		}
	}
	probs[runnersUp[0]] = rest * 0.6
	probs[runnersUp[1]] = rest * 0.3
	tail := runnersUp[2:]
	if len(tail) == 0 {
		probs[runnersUp[1]] += rest * 0.1
	}
	for _, idx := range tail {
		probs[idx] = rest * 0.1 / float64(len(tail))
	}
	return probs, nil
}
