package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/angebot-ai/sales-assistant/internal/config"
	"github.com/angebot-ai/sales-assistant/internal/llm"
	"github.com/angebot-ai/sales-assistant/internal/model"
	"github.com/angebot-ai/sales-assistant/internal/offer"
	"github.com/angebot-ai/sales-assistant/internal/policy"
	"github.com/angebot-ai/sales-assistant/internal/sanitize"
	"github.com/angebot-ai/sales-assistant/pkg/logger"
	"github.com/angebot-ai/sales-assistant/pkg/metrics"
)

// OfferQuotaNotice is surfaced when the model produced an offer but the
// per-conversation quota is exhausted.
const OfferQuotaNotice = "Das Limit von 3 Angeboten pro Gespräch ist erreicht. Das Angebot wurde nicht übernommen."

// OfferGateNotice is surfaced when the conversation is not yet substantive
// enough for an offer.
const OfferGateNotice = "Für ein belastbares Angebot benötige ich noch mehr Details zu Ihrem Vorhaben."

// OfferRejectedNotice is surfaced in strict mode when the offer failed the
// business rules.
const OfferRejectedNotice = "Das erstellte Angebot war fehlerhaft und wurde verworfen. Bitte fragen Sie erneut."

// CollaboratorError is a classified language-model failure carrying the
// fixed user-facing message. The raw cause stays in the logs.
type CollaboratorError struct {
	Kind    llm.FailureKind
	Message string
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("llm collaborator failure (%s)", e.Kind)
}

// MessageStore is the persistence collaborator for messages and events.
type MessageStore interface {
	PublishMessage(ctx context.Context, msg *model.Message) (uint64, error)
	PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error)
	GetMessages(ctx context.Context, userID, conversationID string, afterSequence uint64, limit int) ([]model.Message, uint64, bool, error)
}

// KnowledgeSource supplies the knowledge items for prompt construction.
type KnowledgeSource interface {
	List(ctx context.Context) ([]model.KnowledgeItem, error)
}

// PromptBuilder assembles system instructions from knowledge items.
type PromptBuilder func(items []model.KnowledgeItem, itemChars, budgetChars int) string

// TokenCallback is called for each token while streaming a reply.
type TokenCallback func(token string, index int) error

// ChatService orchestrates one conversation turn: sanitize, policy check,
// collaborator call, offer pipeline, persistence.
type ChatService struct {
	store         MessageStore
	conversations *ConversationService
	knowledge     KnowledgeSource
	buildPrompt   PromptBuilder
	llmClient     llm.Client
	cfg           *config.Config
	logger        *logger.Logger

	// One turn in flight per conversation; nothing upstream prevents
	// concurrent submission.
	turnMu sync.Mutex
	turns  map[string]*sync.Mutex
}

// NewChatService creates the chat orchestrator.
func NewChatService(
	store MessageStore,
	conversations *ConversationService,
	knowledgeSource KnowledgeSource,
	buildPrompt PromptBuilder,
	llmClient llm.Client,
	cfg *config.Config,
	log *logger.Logger,
) *ChatService {
	return &ChatService{
		store:         store,
		conversations: conversations,
		knowledge:     knowledgeSource,
		buildPrompt:   buildPrompt,
		llmClient:     llmClient,
		cfg:           cfg,
		logger:        log,
		turns:         make(map[string]*sync.Mutex),
	}
}

func (s *ChatService) turnLock(conversationID string) *sync.Mutex {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	mu, ok := s.turns[conversationID]
	if !ok {
		mu = &sync.Mutex{}
		s.turns[conversationID] = mu
	}
	return mu
}

// Send runs one non-streaming chat turn.
func (s *ChatService) Send(ctx context.Context, userID, conversationID string, req *model.SendMessageRequest) (*model.ChatResponse, error) {
	return s.turn(ctx, userID, conversationID, req, nil)
}

// SendStream runs one chat turn, forwarding tokens through onToken while
// the reply is generated. Offer extraction happens on the complete text.
func (s *ChatService) SendStream(ctx context.Context, userID, conversationID string, req *model.SendMessageRequest, onToken TokenCallback) (*model.ChatResponse, error) {
	return s.turn(ctx, userID, conversationID, req, onToken)
}

func (s *ChatService) turn(ctx context.Context, userID, conversationID string, req *model.SendMessageRequest, onToken TokenCallback) (*model.ChatResponse, error) {
	mu := s.turnLock(conversationID)
	mu.Lock()
	defer mu.Unlock()

	conv, err := s.conversations.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	if !policy.CanSendMessage(conv.MessageCount) {
		return nil, ErrMessageLimit
	}

	if err := sanitize.Validate(req.Content, s.cfg.MaxMessageLength); err != nil {
		return nil, err
	}

	// Append the user message first; it is part of the history even if the
	// collaborator call fails afterwards.
	userMsg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           model.RoleUser,
		Content:        sanitize.Sanitize(req.Content, s.cfg.MaxMessageLength),
		CreatedAt:      time.Now(),
	}
	seq, err := s.store.PublishMessage(ctx, userMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to persist user message: %w", err)
	}
	userMsg.Sequence = seq
	if err := s.conversations.RecordMessage(ctx, userID, conversationID, userMsg); err != nil {
		return nil, err
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()

	history, _, _, err := s.store.GetMessages(ctx, userID, conversationID, 0, policy.MaxMessagesPerConversation)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	resp, err := s.complete(ctx, req.Model, history, onToken)
	if err != nil {
		kind := llm.Classify(err)
		metrics.LLMFailuresTotal.WithLabelValues(string(kind)).Inc()
		s.logger.Error("llm collaborator failure",
			zap.String("conversation_id", conversationID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		s.store.PublishEvent(ctx, &model.ConversationEvent{
			ID:             uuid.Must(uuid.NewV7()).String(),
			ConversationID: conversationID,
			UserID:         userID,
			Type:           model.EventTypeError,
			Reason:         string(kind),
			CreatedAt:      time.Now(),
		})
		return nil, &CollaboratorError{Kind: kind, Message: llm.UserMessage(err)}
	}

	result := offer.Parse(resp.Content)
	if result.DroppedItems > 0 {
		metrics.ParseAnomaliesTotal.Add(float64(result.DroppedItems))
		s.logger.Warn("offer items dropped during parse",
			zap.String("conversation_id", conversationID),
			zap.Int("dropped", result.DroppedItems),
		)
	}

	out := &model.ChatResponse{UserMessage: userMsg}

	if result.Offer != nil {
		metrics.OffersParsedTotal.WithLabelValues(string(result.Format)).Inc()
		s.decideOffer(ctx, out, conv, history, result)
	}

	assistantMsg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		UserID:         userID,
		Role:           model.RoleAssistant,
		Content:        result.CleanMessage,
		Model:          &resp.Model,
		TokensIn:       &resp.TokensIn,
		TokensOut:      &resp.TokensOut,
		LatencyMs:      &resp.LatencyMs,
		CreatedAt:      time.Now(),
	}
	seq, err = s.store.PublishMessage(ctx, assistantMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to persist assistant message: %w", err)
	}
	assistantMsg.Sequence = seq
	if err := s.conversations.RecordMessage(ctx, userID, conversationID, assistantMsg); err != nil {
		// The reply still reaches the user; only persistence of the last
		// message hit the cap.
		s.logger.Warn("assistant message not recorded", zap.Error(err))
	}
	metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()
	metrics.RecordLLMRequest(resp.Model, "success", float64(resp.LatencyMs)/1000.0, resp.TokensIn, resp.TokensOut)

	out.AssistantMessage = assistantMsg

	conv, err = s.conversations.Get(ctx, userID, conversationID)
	if err == nil {
		out.MessageWarning = policy.MessageLimitWarning(conv.MessageCount)
		out.OfferWarning = policy.OfferLimitWarning(conv.OffersGenerated)
	}

	return out, nil
}

// decideOffer runs the normalize/validate chain and the quota and gate
// checks, attaching or suppressing the parsed offer.
func (s *ChatService) decideOffer(ctx context.Context, out *model.ChatResponse, conv *model.Conversation, history []model.Message, result offer.Result) {
	conversationID := conv.ID
	userID := conv.UserID

	if conv.OffersGenerated >= policy.MaxOffersPerConversation {
		out.OfferSuppressed = true
		out.Notice = OfferQuotaNotice
		metrics.OffersSuppressedTotal.WithLabelValues("quota").Inc()
		s.store.PublishEvent(ctx, &model.ConversationEvent{
			ID:             uuid.Must(uuid.NewV7()).String(),
			ConversationID: conversationID,
			UserID:         userID,
			Type:           model.EventTypeOfferSuppressed,
			Reason:         "quota",
			CreatedAt:      time.Now(),
		})
		return
	}

	if !policy.CanCreateOffer(history, conv.OffersGenerated) {
		out.OfferSuppressed = true
		out.Notice = OfferGateNotice
		metrics.OffersSuppressedTotal.WithLabelValues("gate").Inc()
		return
	}

	normalized := offer.Normalize(result.Offer, time.Now())
	violations := offer.ValidateBusinessRules(normalized)
	if len(violations) > 0 {
		metrics.RuleViolationsTotal.Add(float64(len(violations)))
		s.logger.Warn("offer violates business rules",
			zap.String("conversation_id", conversationID),
			zap.String("offer_id", normalized.ID),
			zap.Strings("violations", violations),
			zap.String("summary", offer.Summary(normalized)),
		)
		if s.cfg.OfferValidationMode == config.ValidationStrict {
			out.OfferSuppressed = true
			out.Notice = OfferRejectedNotice
			metrics.OffersSuppressedTotal.WithLabelValues("validation").Inc()
			return
		}
	}

	out.Offer = &normalized
	if err := s.conversations.RecordOffer(ctx, userID, conversationID); err != nil {
		s.logger.Warn("offer counter not recorded", zap.Error(err))
	}

	s.logger.Info("offer attached",
		zap.String("conversation_id", conversationID),
		zap.String("offer_id", normalized.ID),
		zap.String("summary", offer.Summary(normalized)),
	)
}

// complete builds the prompt and calls the collaborator, streaming when a
// callback is supplied.
func (s *ChatService) complete(ctx context.Context, modelName string, history []model.Message, onToken TokenCallback) (*llm.CompletionResponse, error) {
	items, err := s.knowledge.List(ctx)
	if err != nil {
		s.logger.Warn("knowledge base unavailable, continuing without it", zap.Error(err))
		items = nil
	}
	system := s.buildPrompt(items, s.cfg.KnowledgeItemChars, s.cfg.PromptBudgetChars)

	// Bounded trailing window, every message sanitized before it reaches
	// the collaborator.
	window := history
	if len(window) > s.cfg.ContextWindow {
		window = window[len(window)-s.cfg.ContextWindow:]
	}
	chatMessages := make([]llm.ChatMessage, len(window))
	for i, msg := range window {
		chatMessages[i] = llm.ChatMessage{
			Role:    string(msg.Role),
			Content: sanitize.Sanitize(msg.Content, s.cfg.MaxMessageLength),
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.LLMTimeout)
	defer cancel()

	req := &llm.CompletionRequest{
		Model:    modelName,
		System:   system,
		Messages: chatMessages,
	}

	if onToken != nil {
		return s.llmClient.CompleteStream(callCtx, req, llm.StreamCallback(onToken))
	}
	return s.llmClient.Complete(callCtx, req)
}
