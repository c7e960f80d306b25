// Package memory orchestrates the per-turn memory update: load the user,
// extract facts from the recent conversation, persist the updated snapshot,
// then let the proactive engine react to what changed. Every failure in the
// pipeline degrades to a no-op; the chat itself must never break because
// memory could not be updated.
package memory

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tidewater/bmc/internal/canvas"
	"github.com/tidewater/bmc/internal/extractor"
	"github.com/tidewater/bmc/internal/proactive"
	"github.com/tidewater/bmc/internal/store"
	"github.com/tidewater/bmc/internal/transcript"
)

// UserStore is the persistence surface the orchestrator needs. Satisfied by
// *store.Store.
type UserStore interface {
	GetUser(ctx context.Context, token string) (*canvas.BusinessUser, error)
	ReplaceUser(ctx context.Context, u *canvas.BusinessUser) error
	ResetInsights(ctx context.Context, token string) error
}

// UpdateResult reports what one memory update did.
type UpdateResult struct {
	Delta      canvas.MemoryDelta
	HasChanges bool
	// Insights is the snapshot after the update (the previous one when
	// nothing changed).
	Insights canvas.BusinessInsights
	// Sector is carried along for the suggestion phase.
	Sector string
}

// Orchestrator runs the extract-and-persist cycle for one user at a time.
type Orchestrator struct {
	users       UserStore
	extractor   *extractor.Extractor
	suggestions *proactive.Engine
	logger      *zap.Logger
}

// NewOrchestrator creates an orchestrator. suggestions may be nil to
// disable the proactive phase.
func NewOrchestrator(users UserStore, ex *extractor.Extractor, sug *proactive.Engine, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{users: users, extractor: ex, suggestions: sug, logger: logger}
}

// UpdateMemory extracts facts from the conversation window and persists the
// result when it changed. Returns nil when the user does not exist. Oracle
// and parse failures are logged and reported as a no-change result; the
// caller sees a valid result either way.
func (o *Orchestrator) UpdateMemory(ctx context.Context, token string, turns []transcript.Turn) (*UpdateResult, error) {
	user, err := o.users.GetUser(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			o.logger.Warn("memory update for unknown user", zap.String("token", token))
			return nil, nil
		}
		return nil, err
	}

	res, err := o.extractor.Extract(ctx, user.KeyInsights, transcript.Render(turns))
	if err != nil {
		// Single attempt on the live path; a failed extraction is a no-op.
		o.logger.Error("fact extraction failed", zap.String("token", token), zap.Error(err))
		return &UpdateResult{Insights: user.KeyInsights, Sector: user.Sector}, nil
	}

	out := &UpdateResult{
		Delta:      res.Delta,
		HasChanges: res.HasChanges,
		Insights:   res.Updated,
		Sector:     user.Sector,
	}
	if !res.HasChanges {
		o.logger.Debug("no new insights", zap.String("token", token))
		return out, nil
	}

	user.KeyInsights = res.Updated
	if err := o.users.ReplaceUser(ctx, user); err != nil {
		o.logger.Error("persist memory update failed", zap.String("token", token), zap.Error(err))
		return nil, err
	}
	o.logger.Info("memory updated",
		zap.String("token", token),
		zap.Int("added_categories", len(res.Delta.Added)),
		zap.Int("removed_categories", len(res.Delta.Removed)))
	return out, nil
}

// Suggest runs the proactive phase for an update that changed something and
// appends the suggestion to the user's pending topics. It re-reads the user
// so the append lands on the post-extraction snapshot, never concurrently
// with it. Failures are logged and dropped.
func (o *Orchestrator) Suggest(ctx context.Context, token string, res *UpdateResult) {
	if o.suggestions == nil || res == nil || !res.HasChanges {
		return
	}

	s := o.suggestions.Generate(ctx, res.Delta, res.Insights.CanvasState, res.Sector)
	if !s.ShouldShow() {
		return
	}

	user, err := o.users.GetUser(ctx, token)
	if err != nil {
		o.logger.Warn("suggestion append: user load failed", zap.String("token", token), zap.Error(err))
		return
	}

	tagged := s.Tagged()
	for _, topic := range user.KeyInsights.PendingTopics {
		if topic == tagged {
			return
		}
	}
	user.KeyInsights.PendingTopics = append(user.KeyInsights.PendingTopics, tagged)

	if err := o.users.ReplaceUser(ctx, user); err != nil {
		o.logger.Warn("suggestion append: persist failed", zap.String("token", token), zap.Error(err))
		return
	}
	o.logger.Info("proactive suggestion recorded",
		zap.String("token", token),
		zap.String("target_block", s.TargetBlock))
}

// ResetMemory clears the user's insights while keeping the profile.
func (o *Orchestrator) ResetMemory(ctx context.Context, token string) error {
	return o.users.ResetInsights(ctx, token)
}
