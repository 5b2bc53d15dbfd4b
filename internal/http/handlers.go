// Package http exposes the assistant over HTTP.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nephro-assistant/internal/core"
	"nephro-assistant/internal/session"
	"nephro-assistant/pkg"
)

// DefaultRequestTimeout bounds a chat turn when none is configured.
const DefaultRequestTimeout = 60 * time.Second

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

// Responder runs one conversational turn against a session.
type Responder interface {
	HandleMessage(ctx context.Context, sess *core.Session, message string) (*core.Turn, error)
}

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be passed to http.ListenAndServe.
type Server struct {
	Sessions       session.Store
	Engine         Responder
	Locks          *session.KeyedMutex
	Logger         *zap.Logger
	Metrics        http.Handler
	RequestTimeout time.Duration
}

// NewServer constructs a Server.  metrics may be nil to disable /metrics.
func NewServer(store session.Store, engine Responder, logger *zap.Logger, timeout time.Duration, metrics http.Handler) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Server{
		Sessions:       store,
		Engine:         engine,
		Locks:          session.NewKeyedMutex(),
		Logger:         logger,
		Metrics:        metrics,
		RequestTimeout: timeout,
	}
}

// ServeHTTP dispatches incoming requests based on the URL path.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/" && r.Method == http.MethodGet:
		s.handleHealth(w, r)
	case path == "/chat" && r.Method == http.MethodPost:
		s.handleChat(w, r)
	case path == "/api/sessions" && r.Method == http.MethodPost:
		s.handleCreateSession(w, r)
	// GET /api/sessions/{id}
	case strings.HasPrefix(path, "/api/sessions/") && r.Method == http.MethodGet:
		id := strings.TrimPrefix(path, "/api/sessions/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		s.handleGetSession(w, r, id)
	case path == "/metrics" && r.Method == http.MethodGet && s.Metrics != nil:
		s.Metrics.ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Post-discharge nephrology assistant is running",
	})
}

// handleChat runs one turn.  Turns for the same session are serialized and
// a turn that fails is not persisted.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req pkg.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = NewSessionID()
	}

	unlock := s.Locks.Lock(req.SessionID)
	defer unlock()

	ctx, cancel := context.WithTimeout(r.Context(), s.RequestTimeout)
	defer cancel()

	log := s.Logger.With(zap.String("session_id", req.SessionID))

	sess, err := s.Sessions.Load(ctx, req.SessionID)
	if err != nil {
		log.Error("load session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if req.AllowWeb != nil {
		sess.AllowWeb = *req.AllowWeb
	}

	turn, err := s.Engine.HandleMessage(ctx, sess, req.Message)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		log.Error("turn failed", zap.Error(err))
		writeError(w, status, "the assistant is temporarily unavailable, please try again")
		return
	}

	if err := s.Sessions.Save(ctx, sess); err != nil {
		log.Error("save session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save session")
		return
	}

	writeJSON(w, http.StatusOK, pkg.ChatResponse{
		SessionID: req.SessionID,
		Reply:     turn.Reply,
		Agent:     string(turn.Agent),
	})
}

// handleCreateSession issues a new session id and stores its empty state.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := NewSessionID()
	sess, err := s.Sessions.Load(ctx, id)
	if err == nil {
		err = s.Sessions.Save(ctx, sess)
	}
	if err != nil {
		s.Logger.Error("create session", zap.String("session_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, pkg.SessionCreated{SessionID: id})
}

// Snapshot is the read-only view of a session returned by GET /api/sessions/{id}.
type Snapshot struct {
	SessionID         string              `json:"session_id"`
	Identity          string              `json:"identity"`
	PatientName       string              `json:"patient_name,omitempty"`
	PatientRecord     *pkg.PatientRecord  `json:"patient_record,omitempty"`
	Mode              core.Agent          `json:"mode,omitempty"`
	AllowWeb          bool                `json:"allow_web"`
	Greeted           bool                `json:"greeted"`
	ConversationStage int                 `json:"conversation_stage"`
	History           []core.HistoryEntry `json:"history"`
}

// NewSnapshot builds a Snapshot from sess.
func NewSnapshot(sess *core.Session) Snapshot {
	history := sess.History
	if history == nil {
		history = []core.HistoryEntry{}
	}
	return Snapshot{
		SessionID:         sess.ID,
		Identity:          sess.Identity.String(),
		PatientName:       sess.PatientName,
		PatientRecord:     sess.PatientRecord,
		Mode:              sess.Mode,
		AllowWeb:          sess.AllowWeb,
		Greeted:           sess.Greeted,
		ConversationStage: sess.ConversationStage,
		History:           history,
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id string) {
	sess, err := s.Sessions.Load(r.Context(), id)
	if err != nil {
		s.Logger.Error("load session", zap.String("session_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, NewSnapshot(sess))
}

// NewSessionID returns an id in the "session-<uuid>" form.
func NewSessionID() string {
	return "session-" + uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
