package remotesync

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
	"github.com/wholesale-pos/wholesale-pos/internal/ledger"
	"github.com/wholesale-pos/wholesale-pos/internal/settings"
)

// ActionPull labels pull operations in status and metrics.
const ActionPull = "PULL"

// ConflictPolicy describes how concurrent local and remote edits resolve.
const ConflictPolicy = "last-writer-wins: a pull replaces the whole local catalog and a push replaces the whole remote table; pushes are not ordered, so the remote keeps whichever arrived last"

// Outcome is the final state of a dispatched push.
type Outcome string

const (
	// OutcomeDispatched means the push reached the endpoint without a transport error.
	OutcomeDispatched Outcome = "dispatched"
	// OutcomeSkipped means sync was disabled and nothing was sent.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means the push could not be delivered.
	OutcomeFailed Outcome = "failed"
)

// Pending is the future of a background push.
type Pending struct {
	done    chan struct{}
	outcome Outcome
	err     error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func resolvedPending(outcome Outcome, err error) *Pending {
	p := newPending()
	p.resolve(outcome, err)
	return p
}

func (p *Pending) resolve(outcome Outcome, err error) {
	p.outcome = outcome
	p.err = err
	close(p.done)
}

// Done is closed once the push has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the push finishes or ctx ends.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.done:
		return p.outcome, p.err
	}
}

// State returns the outcome, or "pending" while the push is running.
func (p *Pending) State() string {
	select {
	case <-p.done:
		return string(p.outcome)
	default:
		return "pending"
	}
}

// Recorder receives sync metrics.
type Recorder interface {
	RecordSync(action, outcome string, elapsed time.Duration)
}

// Notifier receives serialized status updates.
type Notifier interface {
	Broadcast(msg []byte)
}

// Status summarises sync activity for operators.
type Status struct {
	Syncing           bool       `json:"syncing"`
	InFlight          int64      `json:"inFlight"`
	LastAction        string     `json:"lastAction,omitempty"`
	LastError         string     `json:"lastError,omitempty"`
	LastErrorAt       *time.Time `json:"lastErrorAt,omitempty"`
	LastSuccessAt     *time.Time `json:"lastSuccessAt,omitempty"`
	RemoteFingerprint string     `json:"remoteFingerprint,omitempty"`
	ConflictPolicy    string     `json:"conflictPolicy"`
}

// SyncerConfig groups Syncer dependencies. Only Client is required.
type SyncerConfig struct {
	Client   *Client
	Logger   *slog.Logger
	Metrics  Recorder
	Notifier Notifier
}

// Syncer dispatches pushes in the background and collapses concurrent pulls.
// Local state is never rolled back because of a remote failure.
type Syncer struct {
	client   *Client
	logger   *slog.Logger
	metrics  Recorder
	notifier Notifier
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	pulls  singleflight.Group

	inFlight atomic.Int64

	mu     sync.Mutex
	closed bool
	status Status
}

// NewSyncer builds a Syncer.
func NewSyncer(cfg SyncerConfig) *Syncer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.Client
	if client == nil {
		client = NewClient(ClientConfig{Logger: logger})
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Syncer{
		client:   client,
		logger:   logger,
		metrics:  cfg.Metrics,
		notifier: cfg.Notifier,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		status:   Status{ConflictPolicy: ConflictPolicy},
	}
}

// PushInventory sends the full product list in the background.
func (s *Syncer) PushInventory(cfg settings.AppConfig, products []catalog.Product) *Pending {
	fingerprint := Fingerprint(products)
	return s.dispatch(cfg, ActionUpdateInventory, fingerprint, func(ctx context.Context, endpoint string) error {
		return s.client.PushInventory(ctx, endpoint, products)
	})
}

// PushSale sends a completed sale and the full product list in the background.
func (s *Syncer) PushSale(cfg settings.AppConfig, sale ledger.Sale, products []catalog.Product) *Pending {
	fingerprint := Fingerprint(products)
	return s.dispatch(cfg, ActionRecordSale, fingerprint, func(ctx context.Context, endpoint string) error {
		return s.client.PushSale(ctx, endpoint, sale, products)
	})
}

func (s *Syncer) dispatch(cfg settings.AppConfig, action, fingerprint string, push func(context.Context, string) error) *Pending {
	if !cfg.Enabled() {
		return resolvedPending(OutcomeSkipped, nil)
	}
	endpoint, err := cfg.Endpoint()
	if err != nil {
		return resolvedPending(OutcomeSkipped, nil)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return resolvedPending(OutcomeFailed, ErrClosed)
	}
	s.wg.Add(1)
	s.mu.Unlock()

	pending := newPending()
	s.begin()
	go func() {
		defer s.wg.Done()
		start := time.Now()
		err := push(s.ctx, endpoint)
		s.finish(action, fingerprint, err, time.Since(start))
		if err != nil {
			pending.resolve(OutcomeFailed, err)
			return
		}
		pending.resolve(OutcomeDispatched, nil)
	}()
	return pending
}

// Pull fetches the remote catalog. Concurrent pulls of the same endpoint
// share one request. The shared request outlives any single caller's
// cancellation and is bounded by the client timeout; each caller still
// returns as soon as its own ctx is done.
func (s *Syncer) Pull(ctx context.Context, endpoint string) ([]catalog.Product, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	s.begin()
	start := time.Now()
	shared := context.WithoutCancel(ctx)
	resultChan := s.pulls.DoChan(endpoint, func() (interface{}, error) {
		return s.client.Pull(shared, endpoint)
	})
	select {
	case <-ctx.Done():
		s.finish(ActionPull, "", ctx.Err(), time.Since(start))
		return nil, ctx.Err()
	case res := <-resultChan:
		products, _ := res.Val.([]catalog.Product)
		fingerprint := ""
		if res.Err == nil {
			fingerprint = Fingerprint(products)
		}
		s.finish(ActionPull, fingerprint, res.Err, time.Since(start))
		if res.Err != nil {
			return nil, res.Err
		}
		out := make([]catalog.Product, len(products))
		copy(out, products)
		return out, nil
	}
}

// Status returns a snapshot of sync activity.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	st.InFlight = s.inFlight.Load()
	st.Syncing = st.InFlight > 0
	return st
}

// StatusJSON serializes the current status.
func (s *Syncer) StatusJSON() []byte {
	raw, err := json.Marshal(s.Status())
	if err != nil {
		return nil
	}
	return raw
}

// Close stops accepting pushes and waits for in-flight ones. When ctx ends
// first, in-flight requests are cancelled.
func (s *Syncer) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

func (s *Syncer) begin() {
	s.inFlight.Add(1)
	s.notify()
}

func (s *Syncer) finish(action, fingerprint string, err error, elapsed time.Duration) {
	s.inFlight.Add(-1)
	now := s.now().UTC()
	outcome := "ok"

	s.mu.Lock()
	s.status.LastAction = action
	if err != nil {
		outcome = "failed"
		s.status.LastError = err.Error()
		s.status.LastErrorAt = &now
	} else {
		s.status.LastError = ""
		s.status.LastSuccessAt = &now
		s.status.RemoteFingerprint = fingerprint
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("remote sync failed",
			slog.String("action", action),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err))
	} else {
		s.logger.Debug("remote sync completed",
			slog.String("action", action),
			slog.Duration("elapsed", elapsed))
	}
	if s.metrics != nil {
		s.metrics.RecordSync(action, outcome, elapsed)
	}
	s.notify()
}

func (s *Syncer) notify() {
	if s.notifier == nil {
		return
	}
	if msg := s.StatusJSON(); msg != nil {
		s.notifier.Broadcast(msg)
	}
}
