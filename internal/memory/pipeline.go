package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tidewater/bmc/internal/transcript"
)

// Pipeline runs memory updates detached from the request that triggered
// them. Updates for the same user are serialized; distinct users run
// concurrently up to the pool size. Each stage gets its own timeout so a
// stuck oracle cannot pin a worker forever.
type Pipeline struct {
	orch           *Orchestrator
	pool           chan struct{}
	locks          sync.Map // token -> *sync.Mutex
	extractTimeout time.Duration
	suggestTimeout time.Duration
	wg             sync.WaitGroup
	logger         *zap.Logger
}

// PipelineConfig tunes the background pipeline.
type PipelineConfig struct {
	Workers        int
	ExtractTimeout time.Duration
	SuggestTimeout time.Duration
}

// NewPipeline creates a background pipeline. Zero config fields fall back
// to defaults.
func NewPipeline(orch *Orchestrator, cfg PipelineConfig, logger *zap.Logger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = 60 * time.Second
	}
	if cfg.SuggestTimeout <= 0 {
		cfg.SuggestTimeout = 30 * time.Second
	}
	return &Pipeline{
		orch:           orch,
		pool:           make(chan struct{}, cfg.Workers),
		extractTimeout: cfg.ExtractTimeout,
		suggestTimeout: cfg.SuggestTimeout,
		logger:         logger,
	}
}

// Dispatch schedules a memory update for the given turns and returns
// immediately. The update runs on a background context: cancelling the
// originating request does not abort it.
func (p *Pipeline) Dispatch(token string, turns []transcript.Turn) {
	if len(turns) == 0 {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.pool <- struct{}{}
		defer func() { <-p.pool }()
		p.run(token, turns)
	}()
}

func (p *Pipeline) run(token string, turns []transcript.Turn) {
	mu := p.lockFor(token)
	mu.Lock()
	defer mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), p.extractTimeout)
	res, err := p.orch.UpdateMemory(ctx, token, turns)
	cancel()
	if err != nil {
		p.logger.Error("background memory update failed",
			zap.String("token", token), zap.Error(err))
		return
	}
	if res == nil || !res.HasChanges {
		return
	}

	// The suggestion phase starts only after the canvas write committed.
	sctx, scancel := context.WithTimeout(context.Background(), p.suggestTimeout)
	p.orch.Suggest(sctx, token, res)
	scancel()
}

func (p *Pipeline) lockFor(token string) *sync.Mutex {
	mu, _ := p.locks.LoadOrStore(token, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Wait blocks until all dispatched updates finish. Used on shutdown and in
// tests.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
