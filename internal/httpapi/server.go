package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/campuskit/advisor/internal/config"
	"github.com/campuskit/advisor/internal/conversation"
	"github.com/campuskit/advisor/internal/observability"
	"github.com/campuskit/advisor/internal/orchestrator"
)

// Orchestrator resolves one inbound message into a reply.
type Orchestrator interface {
	HandleMessage(ctx context.Context, in orchestrator.Inbound) (orchestrator.Outbound, error)
}

// KnowledgeCounter reports how many passages the index currently holds.
type KnowledgeCounter interface {
	Count() int
}

type Server struct {
	cfg       config.Config
	orch      Orchestrator
	store     conversation.Store
	knowledge KnowledgeCounter
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, orch Orchestrator, store conversation.Store, knowledge KnowledgeCounter, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		orch:      orch,
		store:     store,
		knowledge: knowledge,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other sites cannot drive a user's chat if
				// the service is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/messages", s.handleMessage)
	r.Get("/v1/conversations/{userID}", s.handleConversation)
	r.Get("/v1/chat/ws", s.handleChatWS)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"store_mode": s.storeMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	docs := 0
	if s.knowledge != nil {
		docs = s.knowledge.Count()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ready",
		"store_mode":     s.storeMode(),
		"knowledge_docs": docs,
	})
}

type messageRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "user_id is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "empty_message", "text is required")
		return
	}

	out, err := s.orch.HandleMessage(r.Context(), orchestrator.Inbound{
		UserID:     req.UserID,
		Text:       req.Text,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrQueueSaturated):
			respondError(w, http.StatusTooManyRequests, "busy", "too many pending messages, try again shortly")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// Client gave up; the turn still completes in the background.
			respondError(w, http.StatusRequestTimeout, "client_timeout", "request cancelled")
		default:
			log.Printf("httpapi: message for user %s failed: %v", req.UserID, err)
			respondError(w, http.StatusInternalServerError, "turn_failed", "could not process the message")
		}
		return
	}

	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if strings.TrimSpace(userID) == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "missing user id")
		return
	}

	limit := s.cfg.ConversationWindowSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	turns, err := s.store.Recent(r.Context(), userID, limit)
	if err != nil {
		log.Printf("httpapi: history read for user %s failed: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "history_unavailable", "could not load the conversation")
		return
	}
	if turns == nil {
		turns = []conversation.Turn{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"turns":   turns,
	})
}

type wsClientMessage struct {
	Text string `json:"text"`
}

type wsErrorEvent struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// handleChatWS serves a persistent chat connection: one JSON message in, one
// reply out, in order. Replies are written from the read loop, so websocket
// writes stay single-threaded.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "query parameter user_id is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}

		var msg wsClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.writeWS(conn, wsErrorEvent{Error: "invalid message", Code: "invalid_client_message"})
			continue
		}
		if strings.TrimSpace(msg.Text) == "" {
			s.writeWS(conn, wsErrorEvent{Error: "text is required", Code: "empty_message"})
			continue
		}

		out, err := s.orch.HandleMessage(r.Context(), orchestrator.Inbound{
			UserID:     userID,
			Text:       msg.Text,
			ReceivedAt: time.Now().UTC(),
		})
		if err != nil {
			code := "turn_failed"
			if errors.Is(err, orchestrator.ErrQueueSaturated) {
				code = "busy"
			}
			s.writeWS(conn, wsErrorEvent{Error: "could not process the message", Code: code})
			continue
		}
		s.writeWS(conn, out)
	}
}

func (s *Server) writeWS(conn *websocket.Conn, v any) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(v); err != nil {
		log.Printf("httpapi: websocket write failed: %v", err)
	}
}

func (s *Server) storeMode() string {
	if strings.TrimSpace(s.cfg.DatabaseURL) == "" {
		return "in-memory"
	}
	return "postgres"
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
