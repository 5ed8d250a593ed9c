package llm

import "context"

// MockClient allows tests to run without a real model. Responses are consumed
// in order; the last one repeats once the list is exhausted.
type MockClient struct {
	Responses []string
	Err       error

	EmbedVec []float32
	EmbedErr error

	CompleteCalls []CompletionRequest
	EmbedCalls    int
}

func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	m.CompleteCalls = append(m.CompleteCalls, req)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	idx := len(m.CompleteCalls) - 1
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	return m.Responses[idx], nil
}

func (m *MockClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	m.EmbedCalls++
	if m.EmbedErr != nil {
		return nil, m.EmbedErr
	}
	return m.EmbedVec, nil
}
