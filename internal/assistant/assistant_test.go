package assistant

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Veraticus/casa/internal/knowledge"
	"github.com/Veraticus/casa/internal/model"
	"github.com/Veraticus/casa/internal/service"
	"github.com/Veraticus/casa/internal/testutil"
)

type testClock struct {
	now time.Time
	mu  sync.Mutex
}

func newTestClock(t time.Time) *testClock { return &testClock{now: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakeAnswers struct {
	respond  func(req service.AnswerRequest) (*service.AnswerResponse, error)
	requests []service.AnswerRequest
	mu       sync.Mutex
}

func (f *fakeAnswers) Answer(_ context.Context, req service.AnswerRequest) (*service.AnswerResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.respond == nil {
		return nil, errors.New("remote down")
	}
	return f.respond(req)
}

func (f *fakeAnswers) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeAnswers) last() service.AnswerRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeDefense struct {
	err      error
	markdown string
	got      []service.DefenseRequest
}

func (f *fakeDefense) GenerateDefense(_ context.Context, req service.DefenseRequest) (string, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return "", f.err
	}
	return f.markdown, nil
}

type fakeFiles struct {
	err  error
	url  string
	name string
	body string
}

func (f *fakeFiles) Upload(_ context.Context, name, _ string, r io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, _ := io.ReadAll(r)
	f.name, f.body = name, string(b)
	return f.url, nil
}

type staticHousehold struct {
	h   *Household
	err error
}

func (s staticHousehold) Household(context.Context) (*Household, error) {
	return s.h, s.err
}

// emptyMatcher keeps local FAQ answers out of tests that target later stages.
func emptyMatcher() *knowledge.Matcher {
	return knowledge.NewMatcher(nil)
}

func newTestManager(t *testing.T, db *testutil.TestDB, clock *testClock, configure func(*Options)) *SessionManager {
	t.Helper()
	opts := Options{
		Store:   db.Storage,
		Matcher: emptyMatcher(),
		Picker:  FirstPicker{},
		Now:     clock.Now,
	}
	if configure != nil {
		configure(&opts)
	}
	m, err := NewManager(opts)
	require.NoError(t, err)
	return m
}

func lastMessage(t *testing.T, s *Session) model.Message {
	t.Helper()
	msgs := s.Messages()
	require.NotEmpty(t, msgs)
	return msgs[len(msgs)-1]
}
