// mediagen/task/manager_test.go
package task

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mediagen/config"
	"mediagen/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient is a mock implementation of the provider.Client interface.
type mockClient struct {
	kind       provider.Kind
	submitFunc func(ctx context.Context, req provider.Request) (string, error)
	fetchFunc  func(ctx context.Context, jobID string, call int) (map[string]interface{}, error)

	submitCalls int32
	fetchCalls  int32
}

func (m *mockClient) Kind() provider.Kind {
	if m.kind == "" {
		return provider.KindSonic
	}
	return m.kind
}

func (m *mockClient) Submit(ctx context.Context, req provider.Request) (string, error) {
	atomic.AddInt32(&m.submitCalls, 1)
	if m.submitFunc != nil {
		return m.submitFunc(ctx, req)
	}
	return "t1", nil
}

func (m *mockClient) FetchStatus(ctx context.Context, jobID string) (map[string]interface{}, error) {
	call := int(atomic.AddInt32(&m.fetchCalls, 1))
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, jobID, call)
	}
	return map[string]interface{}{"status": "succeeded", "data": []interface{}{}}, nil
}

// mockSink records every save request it receives.
type mockSink struct {
	mu     sync.Mutex
	saved  []SaveRequest
	reject bool
}

func (s *mockSink) Save(ctx context.Context, req SaveRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return "", assert.AnError
	}
	s.saved = append(s.saved, req)
	return "https://durable/" + req.CorrelationID, nil
}

func (s *mockSink) records() []SaveRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SaveRequest(nil), s.saved...)
}

func testConfig() *config.Config {
	return &config.Config{
		PollInterval:     5 * time.Millisecond,
		InitialPollDelay: time.Millisecond,
		MaxPollAttempts:  3,
	}
}

func newTestManager(t *testing.T, cfg *config.Config, client provider.Client, sink Sink) *Manager {
	t.Helper()
	mgr, err := NewManager(cfg, provider.NewRegistry(client), sink)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mgr.Start(ctx)
	return mgr
}

func descriptionRequest() provider.Request {
	return provider.Request{Description: "lofi beat"}
}

func waitForStatus(t *testing.T, mgr *Manager, id string, want Status) Task {
	t.Helper()
	var got Task
	require.Eventually(t, func() bool {
		snap, ok := mgr.Registry().Get(id)
		if !ok {
			return false
		}
		got = snap
		return snap.Status == want
	}, 2*time.Second, 2*time.Millisecond, "task %s never reached status %s", id, want)
	return got
}

func TestManager_GenerateSuccess(t *testing.T) {
	client := &mockClient{
		submitFunc: func(ctx context.Context, req provider.Request) (string, error) {
			return "t1", nil
		},
		fetchFunc: func(ctx context.Context, jobID string, call int) (map[string]interface{}, error) {
			if call == 1 {
				return map[string]interface{}{"status": "pending"}, nil
			}
			return map[string]interface{}{
				"status": "succeeded",
				"data": []interface{}{
					map[string]interface{}{"audio_url": "https://x/a.mp3", "title": "A"},
				},
			}, nil
		},
	}
	sink := &mockSink{}
	mgr := newTestManager(t, testConfig(), client, sink)

	created, err := mgr.Generate(provider.KindSonic, descriptionRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, StatusPending, created.Status)

	done := waitForStatus(t, mgr, created.ID, StatusSuccess)
	assert.Equal(t, "t1", done.ExternalJobID)
	assert.False(t, done.Degraded)
	require.Len(t, done.Results, 1)
	assert.Equal(t, "https://x/a.mp3", done.Results[0].AssetURL)
	assert.Equal(t, "A", done.Results[0].Title)

	// Persistence is fire-and-forget; give the detached save a moment.
	require.Eventually(t, func() bool {
		return len(sink.records()) == 1
	}, time.Second, 2*time.Millisecond)
	rec := sink.records()[0]
	assert.Equal(t, "https://x/a.mp3", rec.SourceURL)
	assert.Equal(t, created.ID, rec.CorrelationID)
}

func TestManager_ProviderFailure(t *testing.T) {
	client := &mockClient{
		fetchFunc: func(ctx context.Context, jobID string, call int) (map[string]interface{}, error) {
			return map[string]interface{}{"status": "failed", "detail": "quota exceeded"}, nil
		},
	}
	mgr := newTestManager(t, testConfig(), client, &mockSink{})

	created, err := mgr.Generate(provider.KindSonic, descriptionRequest())
	require.NoError(t, err)

	failed := waitForStatus(t, mgr, created.ID, StatusError)
	assert.Equal(t, ErrorProvider, failed.ErrorKind)
	assert.Contains(t, failed.ErrorDetail, "quota exceeded")
}

func TestManager_SubmissionFailure(t *testing.T) {
	client := &mockClient{
		submitFunc: func(ctx context.Context, req provider.Request) (string, error) {
			return "", &provider.SubmissionError{StatusCode: 200, Message: "create response did not include a valid job id"}
		},
	}
	mgr := newTestManager(t, testConfig(), client, &mockSink{})

	created, err := mgr.Generate(provider.KindSonic, descriptionRequest())
	require.NoError(t, err)

	failed := waitForStatus(t, mgr, created.ID, StatusError)
	assert.Equal(t, ErrorProvider, failed.ErrorKind)
	assert.Contains(t, failed.ErrorDetail, "job id")

	// No poll is ever attempted after a failed submission.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, atomic.LoadInt32(&client.fetchCalls))
}

func TestManager_TransportErrorOnFinalPoll(t *testing.T) {
	client := &mockClient{
		fetchFunc: func(ctx context.Context, jobID string, call int) (map[string]interface{}, error) {
			if call < 3 {
				return map[string]interface{}{"status": "processing"}, nil
			}
			return nil, &provider.TransportError{Op: "status fetch", Err: assert.AnError}
		},
	}
	mgr := newTestManager(t, testConfig(), client, &mockSink{})

	created, err := mgr.Generate(provider.KindSonic, descriptionRequest())
	require.NoError(t, err)

	// A fetch failure on the last allowed poll reports as a network error,
	// not a timeout.
	failed := waitForStatus(t, mgr, created.ID, StatusError)
	assert.Equal(t, ErrorNetwork, failed.ErrorKind)
}

func TestManager_AttemptBudgetExhausted(t *testing.T) {
	client := &mockClient{
		fetchFunc: func(ctx context.Context, jobID string, call int) (map[string]interface{}, error) {
			return map[string]interface{}{"status": "processing"}, nil
		},
	}
	mgr := newTestManager(t, testConfig(), client, &mockSink{})

	created, err := mgr.Generate(provider.KindSonic, descriptionRequest())
	require.NoError(t, err)

	abandoned := waitForStatus(t, mgr, created.ID, StatusError)
	assert.Equal(t, ErrorTimeout, abandoned.ErrorKind)
	assert.Equal(t, 3, abandoned.Attempts)
}

func TestManager_UnknownStatusKeepsPolling(t *testing.T) {
	client := &mockClient{
		fetchFunc: func(ctx context.Context, jobID string, call int) (map[string]interface{}, error) {
			if call == 1 {
				return map[string]interface{}{"status": "hibernating"}, nil
			}
			return map[string]interface{}{
				"status": "succeeded",
				"data": []interface{}{
					map[string]interface{}{"audio_url": "https://x/a.mp3"},
				},
			}, nil
		},
	}
	mgr := newTestManager(t, testConfig(), client, &mockSink{})

	created, err := mgr.Generate(provider.KindSonic, descriptionRequest())
	require.NoError(t, err)

	done := waitForStatus(t, mgr, created.ID, StatusSuccess)
	require.Len(t, done.Results, 1)
}

func TestManager_DegradedSuccess(t *testing.T) {
	client := &mockClient{
		fetchFunc: func(ctx context.Context, jobID string, call int) (map[string]interface{}, error) {
			// Success status but nothing usable in the payload.
			return map[string]interface{}{"status": "succeeded"}, nil
		},
	}
	sink := &mockSink{}
	mgr := newTestManager(t, testConfig(), client, sink)

	created, err := mgr.Generate(provider.KindSonic, descriptionRequest())
	require.NoError(t, err)

	done := waitForStatus(t, mgr, created.ID, StatusSuccess)
	assert.True(t, done.Degraded)
	assert.Empty(t, done.Results)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sink.records())
}

func TestManager_Cancel(t *testing.T) {
	t.Run("cancel while waiting prevents further polls", func(t *testing.T) {
		cfg := testConfig()
		cfg.InitialPollDelay = 100 * time.Millisecond
		client := &mockClient{}
		mgr := newTestManager(t, cfg, client, &mockSink{})

		created, err := mgr.Generate(provider.KindSonic, descriptionRequest())
		require.NoError(t, err)
		waitForStatus(t, mgr, created.ID, StatusProcessing)

		require.True(t, mgr.Cancel(created.ID))

		_, found := mgr.Registry().Get(created.ID)
		assert.False(t, found)

		time.Sleep(200 * time.Millisecond)
		assert.Zero(t, atomic.LoadInt32(&client.fetchCalls))
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		mgr := newTestManager(t, testConfig(), &mockClient{}, &mockSink{})

		created, err := mgr.Generate(provider.KindSonic, descriptionRequest())
		require.NoError(t, err)

		assert.True(t, mgr.Cancel(created.ID))
		assert.False(t, mgr.Cancel(created.ID))
		assert.False(t, mgr.Cancel("never-existed"))
	})
}

func TestManager_Validation(t *testing.T) {
	client := &mockClient{}
	mgr := newTestManager(t, testConfig(), client, &mockSink{})

	t.Run("custom mode requires title, style, lyrics", func(t *testing.T) {
		created, err := mgr.Generate(provider.KindSonic, provider.Request{CustomMode: true, Style: "jazz", Lyrics: "la"})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.Message, "title")

		// The failed task is still recorded so the UI can render it.
		recorded, found := mgr.Registry().Get(created.ID)
		require.True(t, found)
		assert.Equal(t, StatusError, recorded.Status)
		assert.Equal(t, ErrorValidation, recorded.ErrorKind)
	})

	t.Run("instrumental waives the lyrics requirement", func(t *testing.T) {
		_, err := mgr.Generate(provider.KindSonic, provider.Request{
			CustomMode: true, Instrumental: true, Title: "T", Style: "jazz",
		})
		assert.NoError(t, err)
	})

	t.Run("description mode requires a description", func(t *testing.T) {
		_, err := mgr.Generate(provider.KindSonic, provider.Request{})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("unsupported provider", func(t *testing.T) {
		_, err := mgr.Generate(provider.KindVideo, descriptionRequest())
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	// Validation failures never reach the provider.
	assert.LessOrEqual(t, atomic.LoadInt32(&client.submitCalls), int32(1))
}

func TestManager_SinkFailureDoesNotRevertSuccess(t *testing.T) {
	client := &mockClient{
		fetchFunc: func(ctx context.Context, jobID string, call int) (map[string]interface{}, error) {
			return map[string]interface{}{
				"status": "succeeded",
				"data": []interface{}{
					map[string]interface{}{"audio_url": "https://x/a.mp3"},
				},
			}, nil
		},
	}
	mgr := newTestManager(t, testConfig(), client, &mockSink{reject: true})

	created, err := mgr.Generate(provider.KindSonic, descriptionRequest())
	require.NoError(t, err)

	waitForStatus(t, mgr, created.ID, StatusSuccess)
	time.Sleep(50 * time.Millisecond)

	still, found := mgr.Registry().Get(created.ID)
	require.True(t, found)
	assert.Equal(t, StatusSuccess, still.Status)
	require.Len(t, still.Results, 1)
}
