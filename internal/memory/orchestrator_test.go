package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tidewater/bmc/internal/canvas"
	"github.com/tidewater/bmc/internal/extractor"
	"github.com/tidewater/bmc/internal/proactive"
	"github.com/tidewater/bmc/internal/provider"
	"github.com/tidewater/bmc/internal/store"
	"github.com/tidewater/bmc/internal/transcript"
)

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*canvas.BusinessUser
	replaces int
	resets   int
}

func newFakeStore(users ...*canvas.BusinessUser) *fakeStore {
	fs := &fakeStore{users: make(map[string]*canvas.BusinessUser)}
	for _, u := range users {
		fs.users[u.Token] = u
	}
	return fs
}

func (f *fakeStore) GetUser(_ context.Context, token string) (*canvas.BusinessUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[token]
	if !ok {
		return nil, fmt.Errorf("get user %s: %w", token, store.ErrUserNotFound)
	}
	cp := *u
	cp.KeyInsights = u.KeyInsights.Clone()
	return &cp, nil
}

func (f *fakeStore) ReplaceUser(_ context.Context, u *canvas.BusinessUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.Token]; !ok {
		return store.ErrUserNotFound
	}
	cp := *u
	cp.KeyInsights = u.KeyInsights.Clone()
	f.users[u.Token] = &cp
	f.replaces++
	return nil
}

func (f *fakeStore) ResetInsights(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[token]
	if !ok {
		return store.ErrUserNotFound
	}
	u.KeyInsights = canvas.NewInsights()
	f.resets++
	return nil
}

// scriptedOracle returns canned responses per caller role.
type scriptedOracle struct {
	mu        sync.Mutex
	responses map[string]string
	calls     map[string]int
	delay     time.Duration
	active    int32
	maxActive int32
}

func newScriptedOracle() *scriptedOracle {
	return &scriptedOracle{responses: make(map[string]string), calls: make(map[string]int)}
}

func (s *scriptedOracle) Route(_ context.Context, role string, _ *provider.ChatRequest) (*provider.ChatResponse, error) {
	cur := atomic.AddInt32(&s.active, 1)
	defer atomic.AddInt32(&s.active, -1)
	for {
		max := atomic.LoadInt32(&s.maxActive)
		if cur <= max || atomic.CompareAndSwapInt32(&s.maxActive, max, cur) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[role]++
	content, ok := s.responses[role]
	if !ok {
		return nil, fmt.Errorf("no scripted response for role %s", role)
	}
	return &provider.ChatResponse{Content: content}, nil
}

func (s *scriptedOracle) callCount(role string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[role]
}

func testUser() *canvas.BusinessUser {
	u := canvas.NewUser("Maya Chen", "Bloom & Stem", "Retail")
	return u
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func newOrchestrator(fs *fakeStore, oracle *scriptedOracle) *Orchestrator {
	logger := zap.NewNop()
	ex := extractor.New(oracle, "test-model", logger)
	sug := proactive.NewEngine(oracle, "test-model", logger)
	return NewOrchestrator(fs, ex, sug, logger)
}

func userTurn(text string) transcript.Turn {
	return transcript.Turn{Speaker: transcript.SpeakerUser, Text: text}
}

func TestUpdateMemoryUnknownUser(t *testing.T) {
	fs := newFakeStore()
	oracle := newScriptedOracle()
	o := newOrchestrator(fs, oracle)

	res, err := o.UpdateMemory(context.Background(), "missing-token", []transcript.Turn{userTurn("hello")})
	if err != nil {
		t.Fatalf("unknown user must be a silent no-op, got error %v", err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	if oracle.callCount(provider.RoleExtractor) != 0 {
		t.Error("extraction oracle must not run for unknown users")
	}
}

func TestUpdateMemoryNoChangeSkipsPersist(t *testing.T) {
	u := testUser()
	fs := newFakeStore(u)
	oracle := newScriptedOracle()
	oracle.responses[provider.RoleExtractor] = mustJSON(t, u.KeyInsights)
	o := newOrchestrator(fs, oracle)

	res, err := o.UpdateMemory(context.Background(), u.Token, []transcript.Turn{userTurn("Thanks!")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.HasChanges {
		t.Error("chit-chat must not report changes")
	}
	if fs.replaces != 0 {
		t.Errorf("replaces = %d, want 0", fs.replaces)
	}
}

func TestUpdateMemoryPersistsChanges(t *testing.T) {
	u := testUser()
	updated := u.KeyInsights.Clone()
	updated.CanvasState[canvas.CustomerSegments] = []string{"Gift purchasers"}

	fs := newFakeStore(u)
	oracle := newScriptedOracle()
	oracle.responses[provider.RoleExtractor] = mustJSON(t, updated)
	o := newOrchestrator(fs, oracle)

	res, err := o.UpdateMemory(context.Background(), u.Token, []transcript.Turn{
		userTurn("Our focus is definitely on gifting."),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !res.HasChanges {
		t.Fatal("expected changes")
	}
	if got := res.Delta.AddedIn(canvas.CustomerSegments); len(got) != 1 || got[0] != "Gift purchasers" {
		t.Errorf("delta = %v", got)
	}
	stored, _ := fs.GetUser(context.Background(), u.Token)
	if !stored.KeyInsights.Equal(updated) {
		t.Error("persisted snapshot does not match extraction output")
	}
}

func TestUpdateMemoryExtractionFailureDegrades(t *testing.T) {
	u := testUser()
	fs := newFakeStore(u)
	oracle := newScriptedOracle()
	oracle.responses[provider.RoleExtractor] = "not json at all"
	o := newOrchestrator(fs, oracle)

	res, err := o.UpdateMemory(context.Background(), u.Token, []transcript.Turn{userTurn("hi")})
	if err != nil {
		t.Fatalf("extraction failure must degrade, got error %v", err)
	}
	if res == nil || res.HasChanges {
		t.Errorf("result = %+v, want no-change", res)
	}
	if fs.replaces != 0 {
		t.Error("failed extraction must not persist anything")
	}
}

func TestSuggestAppendsTaggedTopicOnce(t *testing.T) {
	u := testUser()
	fs := newFakeStore(u)
	oracle := newScriptedOracle()
	oracle.responses[provider.RoleSuggester] = `{
		"suggestion": "Add 'Direct Sales' to Channels - enterprise clients need dedicated reps.",
		"target_block": "channels",
		"confidence": 0.8
	}`
	o := newOrchestrator(fs, oracle)

	res := &UpdateResult{
		Delta: canvas.MemoryDelta{
			Added: map[string][]string{canvas.CustomerSegments: {"Enterprise customers"}},
		},
		HasChanges: true,
		Insights:   u.KeyInsights,
		Sector:     u.Sector,
	}
	o.Suggest(context.Background(), u.Token, res)
	o.Suggest(context.Background(), u.Token, res)

	stored, _ := fs.GetUser(context.Background(), u.Token)
	topics := stored.KeyInsights.PendingTopics
	if len(topics) != 1 {
		t.Fatalf("pending topics = %v, want exactly one entry", topics)
	}
	if !canvas.IsSuggestion(topics[0]) {
		t.Errorf("topic %q is not tagged as a system suggestion", topics[0])
	}
}

func TestSuggestSkipsWhenNoChanges(t *testing.T) {
	u := testUser()
	fs := newFakeStore(u)
	oracle := newScriptedOracle()
	o := newOrchestrator(fs, oracle)

	o.Suggest(context.Background(), u.Token, &UpdateResult{HasChanges: false})
	if oracle.callCount(provider.RoleSuggester) != 0 {
		t.Error("suggestion oracle must not run without changes")
	}
}

func TestResetMemory(t *testing.T) {
	u := testUser()
	u.KeyInsights.Constraints = []string{"No subscriptions"}
	fs := newFakeStore(u)
	o := newOrchestrator(fs, newScriptedOracle())

	if err := o.ResetMemory(context.Background(), u.Token); err != nil {
		t.Fatalf("reset: %v", err)
	}
	stored, _ := fs.GetUser(context.Background(), u.Token)
	if !stored.KeyInsights.Equal(canvas.NewInsights()) {
		t.Error("insights not reset to empty")
	}
}

func TestPipelineSerializesPerToken(t *testing.T) {
	u := testUser()
	fs := newFakeStore(u)
	oracle := newScriptedOracle()
	oracle.delay = 20 * time.Millisecond
	oracle.responses[provider.RoleExtractor] = mustJSON(t, u.KeyInsights)
	o := newOrchestrator(fs, oracle)

	p := NewPipeline(o, PipelineConfig{Workers: 8}, zap.NewNop())
	for i := 0; i < 5; i++ {
		p.Dispatch(u.Token, []transcript.Turn{userTurn("hello")})
	}
	p.Wait()

	if got := oracle.callCount(provider.RoleExtractor); got != 5 {
		t.Errorf("extractions = %d, want 5", got)
	}
	if max := atomic.LoadInt32(&oracle.maxActive); max > 1 {
		t.Errorf("max concurrent oracle calls for one user = %d, want 1", max)
	}
}

func TestPipelineIgnoresEmptyWindow(t *testing.T) {
	u := testUser()
	fs := newFakeStore(u)
	oracle := newScriptedOracle()
	o := newOrchestrator(fs, oracle)

	p := NewPipeline(o, PipelineConfig{}, zap.NewNop())
	p.Dispatch(u.Token, nil)
	p.Wait()
	if oracle.callCount(provider.RoleExtractor) != 0 {
		t.Error("empty window must not trigger an extraction")
	}
}
