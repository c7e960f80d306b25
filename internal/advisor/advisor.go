// Package advisor produces expert replies for the chat surface. Each reply
// is generated in the voice of one canvas expert, grounded in the user's
// profile and shared living context, optionally enriched with retrieved
// reference material.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tidewater/bmc/internal/canvas"
	"github.com/tidewater/bmc/internal/provider"
	"github.com/tidewater/bmc/internal/transcript"
)

const characterCard = `Let's roleplay. You're %s, a business consultant specializing in %s
for the Business Model Canvas. You're helping a business owner understand and develop this
specific component of their business model. Use practical, actionable advice in a conversational
and engaging way. Responses must NEVER exceed 50 words.

Your expertise and communication style are detailed below.

---

Expert name: %s
Specialization: %s
Expertise: %s
Communication style: %s

---

%s

---
%s
You must always follow these rules:

- You will never mention that you are an AI or a virtual assistant.
- You know the business owner's name from your client files and should use it naturally in conversation during the first message only.
- Do not address the business owner by their name in later messages.
- When asked about their name or identity, confirm that you know them from your client consultation without using their name.
- IMPORTANT: When asked about their business, goals, or challenges, reference the specific information from the CLIENT PROFILE section above. Show that you remember their stated goals and challenges.
- Provide practical, business-focused advice tailored to their specific context.
- Keep responses conversational, actionable, concise, and under 50 words.
- Ask follow-up questions to better understand their specific needs.

---

The business consultation begins now.`

// Retriever supplies reference material from a user's uploaded documents.
// Satisfied by *rag.Service; nil disables retrieval.
type Retriever interface {
	Context(ctx context.Context, token, query string) (string, error)
}

// Oracle routes a chat request by caller role. Satisfied by *provider.Router.
type Oracle interface {
	Route(ctx context.Context, role string, req *provider.ChatRequest) (*provider.ChatResponse, error)
	RouteStream(ctx context.Context, role string, req *provider.ChatRequest) (<-chan *provider.StreamChunk, error)
}

// Service generates expert replies.
type Service struct {
	oracle    Oracle
	retriever Retriever
	model     string
	logger    *zap.Logger
}

// New creates an advisor service. retriever may be nil.
func New(oracle Oracle, retriever Retriever, model string, logger *zap.Logger) *Service {
	return &Service{oracle: oracle, retriever: retriever, model: model, logger: logger}
}

// ErrUnknownExpert is returned for expert IDs outside the registry.
var ErrUnknownExpert = fmt.Errorf("unknown expert")

// Respond generates a reply from the given expert to the latest user
// message, with the recent transcript as conversational context.
func (s *Service) Respond(ctx context.Context, expertID string, user *canvas.BusinessUser, history []transcript.Turn, message string) (string, error) {
	req, err := s.buildRequest(ctx, expertID, user, history, message)
	if err != nil {
		return "", err
	}
	resp, err := s.oracle.Route(ctx, provider.RoleAdvisor, req)
	if err != nil {
		return "", fmt.Errorf("advisor reply: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// RespondStream is the streaming variant of Respond.
func (s *Service) RespondStream(ctx context.Context, expertID string, user *canvas.BusinessUser, history []transcript.Turn, message string) (<-chan *provider.StreamChunk, error) {
	req, err := s.buildRequest(ctx, expertID, user, history, message)
	if err != nil {
		return nil, err
	}
	return s.oracle.RouteStream(ctx, provider.RoleAdvisor, req)
}

func (s *Service) buildRequest(ctx context.Context, expertID string, user *canvas.BusinessUser, history []transcript.Turn, message string) (*provider.ChatRequest, error) {
	expert, ok := GetExpert(expertID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExpert, expertID)
	}

	reference := ""
	if s.retriever != nil {
		refCtx, err := s.retriever.Context(ctx, user.Token, message)
		if err != nil {
			// Retrieval is best-effort; the expert can answer without it.
			s.logger.Warn("reference retrieval failed", zap.Error(err))
		} else if refCtx != "" {
			reference = "\n[REFERENCE MATERIAL]\nThe user has shared documents. Relevant excerpts:\n" + refCtx + "\n"
		}
	}

	system := fmt.Sprintf(characterCard,
		expert.Name, expert.Domain,
		expert.Name, expert.Domain, expert.Perspective, expert.Style,
		user.ContextString(), reference,
	)

	messages := make([]provider.Message, 0, len(history)+2)
	messages = append(messages, provider.Message{Role: "system", Content: system})
	for _, t := range history {
		role := "assistant"
		if t.Speaker == transcript.SpeakerUser {
			role = "user"
		}
		messages = append(messages, provider.Message{Role: role, Content: t.Text})
	}
	messages = append(messages, provider.Message{Role: "user", Content: message})

	return &provider.ChatRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: 0.7,
	}, nil
}
