// Package api exposes the REST surface: chat with canvas experts, user
// management, memory inspection, and document upload.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/tidewater/bmc/internal/advisor"
	"github.com/tidewater/bmc/internal/canvas"
	"github.com/tidewater/bmc/internal/provider"
	"github.com/tidewater/bmc/internal/store"
	"github.com/tidewater/bmc/internal/transcript"
)

// UserStore is the user persistence surface. Satisfied by *store.Store.
type UserStore interface {
	CreateUser(ctx context.Context, u *canvas.BusinessUser) error
	GetUser(ctx context.Context, token string) (*canvas.BusinessUser, error)
	ListUsers(ctx context.Context) ([]*canvas.BusinessUser, error)
	ReplaceUser(ctx context.Context, u *canvas.BusinessUser) error
	DeleteUser(ctx context.Context, token string) error
	ResetInsights(ctx context.Context, token string) error
}

// TranscriptStore keeps conversation history. Satisfied by
// *transcript.Store.
type TranscriptStore interface {
	Append(ctx context.Context, token string, turns ...transcript.Turn) error
	Window(ctx context.Context, token string, n int) ([]transcript.Turn, error)
	Clear(ctx context.Context, token string) error
}

// Advisor generates expert replies. Satisfied by *advisor.Service.
type Advisor interface {
	Respond(ctx context.Context, expertID string, user *canvas.BusinessUser, history []transcript.Turn, message string) (string, error)
	RespondStream(ctx context.Context, expertID string, user *canvas.BusinessUser, history []transcript.Turn, message string) (<-chan *provider.StreamChunk, error)
}

// Dispatcher schedules background memory updates. Satisfied by
// *memory.Pipeline.
type Dispatcher interface {
	Dispatch(token string, turns []transcript.Turn)
}

// Ingestor indexes uploaded documents. Satisfied by *rag.Service; nil
// disables uploads.
type Ingestor interface {
	Ingest(ctx context.Context, token, filename, text string) (int, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	users       UserStore
	transcripts TranscriptStore
	advisor     Advisor
	pipeline    Dispatcher
	ingestor    Ingestor
	windowTurns int
	logger      *zap.Logger
}

// NewHandler creates an API handler. windowTurns bounds how much recent
// conversation the extraction pipeline sees per update.
func NewHandler(users UserStore, transcripts TranscriptStore, adv Advisor, pipeline Dispatcher, ingestor Ingestor, windowTurns int, logger *zap.Logger) *Handler {
	if windowTurns <= 0 {
		windowTurns = 6
	}
	return &Handler{
		users:       users,
		transcripts: transcripts,
		advisor:     adv,
		pipeline:    pipeline,
		ingestor:    ingestor,
		windowTurns: windowTurns,
		logger:      logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/experts", h.listExperts)

		r.Post("/chat", h.chat)
		r.Post("/chat/stream", h.chatStream)

		r.Post("/users", h.createUser)
		r.Get("/users", h.listUsers)
		r.Get("/users/{token}", h.getUser)
		r.Put("/users/{token}", h.updateUser)
		r.Delete("/users/{token}", h.deleteUser)
		r.Get("/users/{token}/validate", h.validateToken)
		r.Delete("/users/{token}/memory", h.resetMemory)
		r.Post("/users/{token}/documents", h.uploadDocument)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "bmc"})
}

func (h *Handler) listExperts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"experts": advisor.ListExperts()})
}

type chatRequest struct {
	Token    string `json:"token"`
	ExpertID string `json:"expert_id"`
	Message  string `json:"message"`
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	req, user, history, ok := h.prepareChat(w, r)
	if !ok {
		return
	}

	reply, err := h.advisor.Respond(r.Context(), req.ExpertID, user, history, req.Message)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, advisor.ErrUnknownExpert) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	h.recordAndDispatch(r.Context(), req.Token, req.Message, reply)
	writeJSON(w, http.StatusOK, map[string]string{
		"response":  reply,
		"expert_id": req.ExpertID,
	})
}

func (h *Handler) chatStream(w http.ResponseWriter, r *http.Request) {
	req, user, history, ok := h.prepareChat(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	ch, err := h.advisor.RespondStream(r.Context(), req.ExpertID, user, history, req.Message)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, advisor.ErrUnknownExpert) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var reply string
	for chunk := range ch {
		if chunk.Content != "" {
			reply += chunk.Content
			data, _ := json.Marshal(map[string]string{"chunk": chunk.Content})
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
		if chunk.Done {
			break
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	h.recordAndDispatch(r.Context(), req.Token, req.Message, reply)
}

// prepareChat validates the request and loads the user plus recent history.
func (h *Handler) prepareChat(w http.ResponseWriter, r *http.Request) (chatRequest, *canvas.BusinessUser, []transcript.Turn, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return req, nil, nil, false
	}
	if req.Token == "" || req.ExpertID == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token, expert_id and message are required"})
		return req, nil, nil, false
	}

	user, err := h.users.GetUser(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		} else {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return req, nil, nil, false
	}

	history, err := h.transcripts.Window(r.Context(), req.Token, h.windowTurns)
	if err != nil {
		// History is an enhancement; the expert can reply without it.
		h.logger.Warn("transcript read failed", zap.String("token", req.Token), zap.Error(err))
	}
	return req, user, history, true
}

// recordAndDispatch appends the exchange to the transcript and kicks off
// the detached memory update over the recent window.
func (h *Handler) recordAndDispatch(ctx context.Context, token, message, reply string) {
	turns := []transcript.Turn{
		{Speaker: transcript.SpeakerUser, Text: message},
		{Speaker: transcript.SpeakerExpert, Text: reply},
	}
	if err := h.transcripts.Append(ctx, token, turns...); err != nil {
		h.logger.Warn("transcript append failed", zap.String("token", token), zap.Error(err))
	}

	window, err := h.transcripts.Window(ctx, token, h.windowTurns)
	if err != nil || len(window) == 0 {
		window = turns
	}
	h.pipeline.Dispatch(token, window)
}

type createUserRequest struct {
	OwnerName    string   `json:"owner_name"`
	BusinessName string   `json:"business_name"`
	Sector       string   `json:"sector"`
	Challenges   []string `json:"challenges"`
	Goals        []string `json:"goals"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.OwnerName == "" || req.BusinessName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "owner_name and business_name are required"})
		return
	}

	user := canvas.NewUser(req.OwnerName, req.BusinessName, req.Sector)
	user.Challenges = append(user.Challenges, req.Challenges...)
	user.Goals = append(user.Goals, req.Goals...)

	if err := h.users.CreateUser(r.Context(), user); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if users == nil {
		users = []*canvas.BusinessUser{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	user, err := h.users.GetUser(r.Context(), token)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		} else {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	existing, err := h.users.GetUser(r.Context(), token)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		} else {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.OwnerName != "" {
		existing.OwnerName = req.OwnerName
	}
	if req.BusinessName != "" {
		existing.BusinessName = req.BusinessName
	}
	if req.Sector != "" {
		existing.Sector = req.Sector
	}
	if req.Challenges != nil {
		existing.Challenges = req.Challenges
	}
	if req.Goals != nil {
		existing.Goals = req.Goals
	}

	if err := h.users.ReplaceUser(r.Context(), existing); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, existing)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.users.DeleteUser(r.Context(), token); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		} else {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}
	if err := h.transcripts.Clear(r.Context(), token); err != nil {
		h.logger.Warn("transcript clear failed", zap.String("token", token), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) validateToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	user, err := h.users.GetUser(r.Context(), token)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"valid": false})
		} else {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":         true,
		"owner_name":    user.OwnerName,
		"business_name": user.BusinessName,
	})
}

func (h *Handler) resetMemory(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.users.ResetInsights(r.Context(), token); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		} else {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}
	if err := h.transcripts.Clear(r.Context(), token); err != nil {
		h.logger.Warn("transcript clear failed", zap.String("token", token), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "memory reset"})
}

type uploadRequest struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

func (h *Handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if h.ingestor == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "document indexing not configured"})
		return
	}
	token := chi.URLParam(r, "token")
	if _, err := h.users.GetUser(r.Context(), token); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
		} else {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Filename == "" || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "filename and text are required"})
		return
	}

	chunks, err := h.ingestor.Ingest(r.Context(), token, req.Filename, req.Text)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"filename": req.Filename,
		"chunks":   chunks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
