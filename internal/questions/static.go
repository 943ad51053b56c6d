package questions

import "context"

// StaticProvider serves a fixed question set, cycling when the request
// exceeds the pool. Used in mock mode and tests.
type StaticProvider struct {
	pool []Question
}

// NewStaticProvider creates a provider over the given pool. Passing an
// empty pool yields ErrNoQuestions on every Fetch.
func NewStaticProvider(pool []Question) *StaticProvider {
	return &StaticProvider{pool: pool}
}

func (p *StaticProvider) Fetch(_ context.Context, _ string, count int) ([]Question, error) {
	if len(p.pool) == 0 {
		return nil, ErrNoQuestions
	}
	out := make([]Question, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, p.pool[i%len(p.pool)])
	}
	return out, nil
}
