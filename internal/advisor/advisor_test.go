package advisor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/tidewater/bmc/internal/canvas"
	"github.com/tidewater/bmc/internal/provider"
	"github.com/tidewater/bmc/internal/transcript"
)

type stubOracle struct {
	lastReq *provider.ChatRequest
}

func (s *stubOracle) Route(_ context.Context, _ string, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	s.lastReq = req
	return &provider.ChatResponse{Content: "Focus on gifting occasions first. What budget range do your corporate clients expect?"}, nil
}

func (s *stubOracle) RouteStream(_ context.Context, _ string, req *provider.ChatRequest) (<-chan *provider.StreamChunk, error) {
	s.lastReq = req
	ch := make(chan *provider.StreamChunk, 2)
	ch <- &provider.StreamChunk{Content: "Focus on gifting."}
	ch <- &provider.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

type stubRetriever struct {
	context string
	err     error
}

func (s *stubRetriever) Context(_ context.Context, _, _ string) (string, error) {
	return s.context, s.err
}

func TestRegistryCoversAllBlocks(t *testing.T) {
	for _, b := range canvas.Blocks {
		if _, ok := GetExpert(b); !ok {
			t.Errorf("no expert registered for block %s", b)
		}
	}
	if got := len(ListExperts()); got != len(canvas.Blocks) {
		t.Errorf("expert count = %d, want %d", got, len(canvas.Blocks))
	}
}

func TestRespondBuildsPersonaPrompt(t *testing.T) {
	oracle := &stubOracle{}
	svc := New(oracle, nil, "test-model", zap.NewNop())
	user := canvas.NewUser("Maya Chen", "Bloom & Stem", "Retail")
	user.KeyInsights.CanvasState[canvas.CustomerSegments] = []string{"Gift purchasers"}

	reply, err := svc.Respond(context.Background(), "channels", user,
		[]transcript.Turn{{Speaker: transcript.SpeakerUser, Text: "Hi!"}},
		"Which channels should I start with?")
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if reply == "" {
		t.Fatal("empty reply")
	}

	system := oracle.lastReq.Messages[0]
	if system.Role != "system" {
		t.Fatalf("first message role = %s", system.Role)
	}
	for _, want := range []string{"Lena Kovac", "Maya Chen", "Bloom & Stem", "Gift purchasers", "never mention that you are an AI"} {
		if !strings.Contains(system.Content, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	last := oracle.lastReq.Messages[len(oracle.lastReq.Messages)-1]
	if last.Role != "user" || last.Content != "Which channels should I start with?" {
		t.Errorf("last message = %+v", last)
	}
}

func TestRespondUnknownExpert(t *testing.T) {
	svc := New(&stubOracle{}, nil, "test-model", zap.NewNop())
	user := canvas.NewUser("Maya Chen", "Bloom & Stem", "Retail")
	_, err := svc.Respond(context.Background(), "marketing_guru", user, nil, "hello")
	if !errors.Is(err, ErrUnknownExpert) {
		t.Fatalf("want ErrUnknownExpert, got %v", err)
	}
}

func TestRespondIncludesReferenceMaterial(t *testing.T) {
	oracle := &stubOracle{}
	svc := New(oracle, &stubRetriever{context: "Seasonal demand peaks around Mother's Day."}, "test-model", zap.NewNop())
	user := canvas.NewUser("Maya Chen", "Bloom & Stem", "Retail")

	if _, err := svc.Respond(context.Background(), "revenue_streams", user, nil, "When is demand highest?"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	if !strings.Contains(oracle.lastReq.Messages[0].Content, "Mother's Day") {
		t.Error("retrieved reference material missing from system prompt")
	}
}

func TestRespondRetrievalFailureIsNonFatal(t *testing.T) {
	oracle := &stubOracle{}
	svc := New(oracle, &stubRetriever{err: errors.New("vector store down")}, "test-model", zap.NewNop())
	user := canvas.NewUser("Maya Chen", "Bloom & Stem", "Retail")

	if _, err := svc.Respond(context.Background(), "channels", user, nil, "hello"); err != nil {
		t.Fatalf("retrieval failure must not fail the reply: %v", err)
	}
}
