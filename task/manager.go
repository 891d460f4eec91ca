package task

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"mediagen/config"
	"mediagen/provider"

	"github.com/lithammer/shortuuid/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SaveRequest is one finalized result handed to the persistence sink.
type SaveRequest struct {
	SourceURL     string   `json:"sourceUrl"`
	Title         string   `json:"title"`
	Duration      float64  `json:"durationSeconds,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	CorrelationID string   `json:"correlationId"`
}

// Sink archives a finalized result durably. Failures are warnings, never
// task failures.
type Sink interface {
	Save(ctx context.Context, req SaveRequest) (string, error)
}

// ValidationError means required fields are missing for the chosen mode. It
// is detected before any network call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Manager drives every task through submit -> poll -> finalize -> persist.
// Each task gets its own goroutine; all shared state lives in the Registry.
type Manager struct {
	cfg       *config.Config
	providers *provider.Registry
	sink      Sink
	registry  *Registry
	baseCtx   context.Context
}

func NewManager(cfg *config.Config, providers *provider.Registry, sink Sink) (*Manager, error) {
	if cfg.MaxPollAttempts <= 0 {
		return nil, fmt.Errorf("max poll attempts must be positive, got %d", cfg.MaxPollAttempts)
	}
	return &Manager{
		cfg:       cfg,
		providers: providers,
		sink:      sink,
		registry:  NewRegistry(),
		baseCtx:   context.Background(),
	}, nil
}

// Start binds the manager to its application lifetime. In-flight pollers and
// detached persistence stop when ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	m.baseCtx = ctx
	log.Printf("Task manager started. Providers: %v, poll interval: %s, attempt budget: %d",
		m.providers.Kinds(), m.cfg.PollInterval, m.cfg.MaxPollAttempts)
}

// Registry exposes the read side for API handlers.
func (m *Manager) Registry() *Registry { return m.registry }

// Generate validates the request, records the new task, and launches its
// poller. A validation failure still produces a (terminal) task so the UI
// can render it, and is returned so the transport layer can answer 400.
func (m *Manager) Generate(kind provider.Kind, req provider.Request) (Task, error) {
	client, ok := m.providers.Lookup(kind)
	if !ok {
		return Task{}, &ValidationError{Message: fmt.Sprintf("unsupported provider: %s", kind)}
	}

	t := &Task{
		ID:        fmt.Sprintf("%s_%d", shortuuid.New(), time.Now().Unix()),
		Provider:  kind,
		Params:    req,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	if err := validate(kind, req); err != nil {
		t.Status = StatusError
		t.ErrorKind = ErrorValidation
		t.ErrorDetail = err.Error()
		m.registry.add(t)
		return snapshot(t), err
	}

	if err := m.checkResources(); err != nil {
		return Task{}, fmt.Errorf("server is overloaded, try again later: %w", err)
	}

	// The cancellation handle is installed before the task becomes visible,
	// so Cancel always finds it.
	taskCtx, cancel := context.WithCancel(m.baseCtx)
	t.cancelFunc = cancel
	m.registry.add(t)
	go m.run(taskCtx, t.ID, client, req)

	log.Printf("Task %s submitted (provider: %s)", t.ID, kind)
	return snapshot(t), nil
}

// Cancel removes a task and stops any pending poll for it. Cancelling an
// unknown (already cancelled) task is a no-op; the bool reports whether the
// task existed.
func (m *Manager) Cancel(id string) bool {
	cancel, ok := m.registry.remove(id)
	if !ok {
		return false
	}
	if cancel != nil {
		cancel()
	}
	log.Printf("Task %s cancelled and removed", id)
	return true
}

// run is the per-task poller: submit, wait out the initial delay, then poll
// on the steady interval until a terminal classification, a fetch failure,
// or the attempt budget runs out.
func (m *Manager) run(ctx context.Context, id string, client provider.Client, req provider.Request) {
	jobID, err := client.Submit(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("Task %s submission failed: %v", id, err)
		m.registry.markError(id, ErrorProvider, fmt.Sprintf("%v (try again later)", err))
		return
	}

	m.registry.markProcessing(id, jobID)
	log.Printf("Task %s accepted by provider as job %s", id, jobID)

	// The first check comes sooner than the steady cadence to absorb
	// provider-side queuing latency.
	delay := m.cfg.InitialPollDelay

	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		attempts, ok := m.registry.recordAttempt(id)
		if !ok {
			// Task was cancelled while waiting.
			return
		}

		payload, err := client.FetchStatus(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Task %s status poll %d failed: %v", id, attempts, err)
			m.registry.markError(id, ErrorNetwork, fmt.Sprintf("error checking task status: %v (try again later)", err))
			return
		}

		switch Classify(payload) {
		case ClassSuccess:
			m.finalizeSuccess(id, jobID, payload)
			return
		case ClassFailure:
			detail := failureDetail(payload)
			log.Printf("Task %s failed on provider side: %s", id, detail)
			m.registry.markError(id, ErrorProvider, fmt.Sprintf("generation failed: %s", detail))
			return
		case ClassUnknown:
			log.Printf("Task %s: status could not be determined from poll %d, treating as still processing", id, attempts)
		case ClassProcessing:
			log.Printf("Task %s still processing (poll %d/%d)", id, attempts, m.cfg.MaxPollAttempts)
		}

		if attempts >= m.cfg.MaxPollAttempts {
			log.Printf("Task %s abandoned after %d polls", id, attempts)
			m.registry.markError(id, ErrorTimeout, "generation is taking longer than expected, check back later")
			return
		}
		delay = m.cfg.PollInterval
	}
}

// finalizeSuccess extracts results, installs them in the registry first so
// the UI sees them immediately, then hands each result to the sink as a
// detached save. A failed save never rolls the task back.
func (m *Manager) finalizeSuccess(id, jobID string, payload map[string]interface{}) {
	results := ExtractResults(jobID, payload)
	degraded := len(results) == 0
	m.registry.markSuccess(id, results, degraded)

	if degraded {
		log.Printf("Task %s completed but no usable results were extracted", id)
		return
	}
	log.Printf("Task %s completed with %d result(s)", id, len(results))

	for _, res := range results {
		go m.persist(id, res)
	}
}

func (m *Manager) persist(taskID string, res Result) {
	if m.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(m.baseCtx, 2*time.Minute)
	defer cancel()

	durableURL, err := m.sink.Save(ctx, SaveRequest{
		SourceURL:     res.AssetURL,
		Title:         res.Title,
		Duration:      res.Duration,
		Tags:          res.Tags,
		CorrelationID: taskID,
	})
	if err != nil {
		log.Printf("WARNING: task %s: failed to archive result %s: %v", taskID, res.SourceID, err)
		return
	}
	log.Printf("Task %s: result %s archived at %s", taskID, res.SourceID, durableURL)
}

// failureDetail prefers the provider's detail field over the raw token.
func failureDetail(payload map[string]interface{}) string {
	for _, key := range []string{"detail", "message", "error"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	if token := statusToken(payload); token != "" {
		return token
	}
	return "unknown error"
}

func validate(kind provider.Kind, req provider.Request) error {
	switch kind {
	case provider.KindSonic, provider.KindStudio:
		if req.CustomMode {
			if strings.TrimSpace(req.Title) == "" {
				return &ValidationError{Message: "title is required in custom mode"}
			}
			if strings.TrimSpace(req.Style) == "" {
				return &ValidationError{Message: "style is required in custom mode"}
			}
			if !req.Instrumental && strings.TrimSpace(req.Lyrics) == "" {
				return &ValidationError{Message: "lyrics are required in custom mode unless instrumental"}
			}
		} else if strings.TrimSpace(req.Description) == "" {
			return &ValidationError{Message: "song description is required"}
		}
	default:
		if strings.TrimSpace(req.Description) == "" {
			return &ValidationError{Message: "prompt is required"}
		}
	}
	return nil
}

// checkResources refuses new work when the host is under pressure.
func (m *Manager) checkResources() error {
	p, err := cpu.Percent(0, false)
	if err != nil {
		log.Printf("Warning: could not get CPU usage: %v", err)
	} else if len(p) > 0 && m.cfg.ThrottleCPU > 0 && p[0] > m.cfg.ThrottleCPU {
		return fmt.Errorf("CPU usage %.2f%% above threshold %.2f%%", p[0], m.cfg.ThrottleCPU)
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Printf("Warning: could not get memory usage: %v", err)
	} else if m.cfg.ThrottleFreeMem > 0 && vm.Available < uint64(m.cfg.ThrottleFreeMem) {
		return fmt.Errorf("free memory %d below threshold %d", vm.Available, m.cfg.ThrottleFreeMem)
	}
	return nil
}
