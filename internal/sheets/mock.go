package sheets

import (
	"context"
	"sync"
)

// MockWriter records projection exports for testing.
type MockWriter struct {
	WriteFunc      func(ctx context.Context, report ProjectionReport) (string, error)
	Reports        []ProjectionReport
	WriteCallCount int
	mu             sync.Mutex
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{}
}

// Write records report and returns WriteFunc's result, or "mock-sheet".
func (m *MockWriter) Write(ctx context.Context, report ProjectionReport) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++
	m.Reports = append(m.Reports, report)

	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, report)
	}
	return "mock-sheet", nil
}

// LastReport returns the most recent report, if any.
func (m *MockWriter) LastReport() (ProjectionReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Reports) == 0 {
		return ProjectionReport{}, false
	}
	return m.Reports[len(m.Reports)-1], true
}

// SetWriteError configures the mock to fail every Write call with err.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteFunc = func(context.Context, ProjectionReport) (string, error) {
		return "", err
	}
}
