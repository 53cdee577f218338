package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/angebot-ai/sales-assistant/internal/middleware"
	"github.com/angebot-ai/sales-assistant/internal/model"
	"github.com/angebot-ai/sales-assistant/internal/service"
	"github.com/angebot-ai/sales-assistant/pkg/logger"
	"github.com/angebot-ai/sales-assistant/pkg/metrics"
)

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	chatService         *service.ChatService
	conversationService *service.ConversationService
	store               service.MessageStore
	logger              *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(
	chatSvc *service.ChatService,
	convSvc *service.ConversationService,
	store service.MessageStore,
	log *logger.Logger,
) *StreamHandler {
	return &StreamHandler{
		chatService:         chatSvc,
		conversationService: convSvc,
		store:               store,
		logger:              log,
	}
}

// ReplayCompleteEvent marks the end of message replay.
type ReplayCompleteEvent struct {
	LastSequence uint64 `json:"last_sequence"`
	MessageCount int    `json:"message_count"`
}

// Stream handles GET /api/v1/conversations/:id/stream. It replays history and
// keeps the connection alive with heartbeats. Supports ?after_sequence=N.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.conversationService.Get(ctx, userID, conversationID); err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	var afterSequence uint64
	if seqStr := r.URL.Query().Get("after_sequence"); seqStr != "" {
		if seq, err := strconv.ParseUint(seqStr, 10, 64); err == nil {
			afterSequence = seq
		}
	}

	flusher, ok := setupSSE(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	done := ctx.Done()

	sendSSEEvent(w, flusher, "connected", map[string]string{
		"conversation_id": conversationID,
	})

	var lastSequence uint64
	var totalReplayed int

	for {
		messages, lastSeq, hasMore, err := h.store.GetMessages(ctx, userID, conversationID, afterSequence, 50)
		if err != nil {
			h.logger.Error("failed to replay messages",
				zap.Error(err),
				zap.String("conversation_id", conversationID),
			)
			sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
				Code:    "replay_error",
				Message: "Nachrichtenverlauf konnte nicht geladen werden.",
			})
			break
		}

		for _, msg := range messages {
			select {
			case <-done:
				return
			default:
			}
			sendSSEEvent(w, flusher, "message", msg)
			totalReplayed++
		}
		lastSequence = lastSeq

		if hasMore {
			afterSequence = lastSequence
		} else {
			break
		}
	}

	sendSSEEvent(w, flusher, "replay_complete", &ReplayCompleteEvent{
		LastSequence: lastSequence,
		MessageCount: totalReplayed,
	})

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			return
		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

// StreamWithMessage handles POST /api/v1/conversations/:id/stream. It runs a
// chat turn, emitting token events while the reply generates. The offer
// block is only extracted once the full text is known, so offer events
// follow the last token.
func (h *StreamHandler) StreamWithMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := setupSSE(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	resp, err := h.chatService.SendStream(ctx, userID, conversationID, &req,
		func(token string, index int) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			return sendSSEEvent(w, flusher, "token", &model.TokenEvent{
				Token: token,
				Index: index,
			})
		},
	)
	if err != nil {
		var collabErr *service.CollaboratorError
		msg := "Die Anfrage konnte nicht verarbeitet werden."
		if errors.As(err, &collabErr) {
			msg = collabErr.Message
		}
		sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
			Code:    "stream_error",
			Message: msg,
		})
		return
	}

	sendSSEEvent(w, flusher, "user_message", resp.UserMessage)

	if resp.Offer != nil {
		sendSSEEvent(w, flusher, "offer", resp.Offer)
	}
	if resp.OfferSuppressed {
		sendSSEEvent(w, flusher, "offer_suppressed", map[string]string{
			"notice": resp.Notice,
		})
	}

	if resp.AssistantMessage != nil {
		sendSSEEvent(w, flusher, "message_complete", &model.MessageCompleteEvent{
			Message:  *resp.AssistantMessage,
			Sequence: resp.AssistantMessage.Sequence,
		})
	}

	sendSSEEvent(w, flusher, "done", map[string]bool{"success": true})
}

func setupSSE(w http.ResponseWriter) (http.Flusher, bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	return flusher, ok
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
