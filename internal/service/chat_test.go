package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/angebot-ai/sales-assistant/internal/config"
	"github.com/angebot-ai/sales-assistant/internal/llm"
	"github.com/angebot-ai/sales-assistant/internal/model"
	"github.com/angebot-ai/sales-assistant/internal/policy"
	"github.com/angebot-ai/sales-assistant/pkg/logger"
)

type fakeStore struct {
	messages []model.Message
	events   []model.ConversationEvent
}

func (f *fakeStore) PublishMessage(ctx context.Context, msg *model.Message) (uint64, error) {
	f.messages = append(f.messages, *msg)
	return uint64(len(f.messages)), nil
}

func (f *fakeStore) PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error) {
	f.events = append(f.events, *event)
	return uint64(len(f.events)), nil
}

func (f *fakeStore) GetMessages(ctx context.Context, userID, conversationID string, afterSequence uint64, limit int) ([]model.Message, uint64, bool, error) {
	var out []model.Message
	for _, msg := range f.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out, uint64(len(f.messages)), false, nil
}

type fakeLLM struct {
	content string
	err     error
}

func (f *fakeLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{
		Content:   f.content,
		Model:     "test-model",
		TokensIn:  10,
		TokensOut: 20,
		LatencyMs: 5,
	}, nil
}

func (f *fakeLLM) CompleteStream(ctx context.Context, req *llm.CompletionRequest, callback llm.StreamCallback) (*llm.CompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i, token := range strings.SplitAfter(f.content, " ") {
		if err := callback(token, i); err != nil {
			return nil, err
		}
	}
	return f.Complete(ctx, req)
}

func (f *fakeLLM) Name() string     { return "fake" }
func (f *fakeLLM) Models() []string { return []string{"test-model"} }

type fakeKnowledge struct{}

func (fakeKnowledge) List(ctx context.Context) ([]model.KnowledgeItem, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		LLMTimeout:          5 * time.Second,
		OfferValidationMode: config.ValidationPermissive,
		MaxMessageLength:    2000,
		KnowledgeItemChars:  1000,
		PromptBudgetChars:   8000,
		ContextWindow:       10,
	}
}

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func staticPrompt(items []model.KnowledgeItem, itemChars, budgetChars int) string {
	return "system"
}

const offerReply = `Gerne, hier mein Vorschlag:
[ANGEBOT_START]
{"title": "Projekt", "description": "Umsetzung des Vorhabens", "items": [{"name": "Umsetzung", "description": "Komplette Umsetzung", "price": 120, "quantity": 20}], "totalPrice": 2400}
[ANGEBOT_END]`

// substantialMessage exceeds the per-message word gate.
func substantialMessage() string {
	return strings.TrimSpace(strings.Repeat("Wort ", 60))
}

type chatFixture struct {
	store         *fakeStore
	conversations *ConversationService
	svc           *ChatService
	conv          *model.Conversation
}

func newChatFixture(t *testing.T, cfg *config.Config, client llm.Client) *chatFixture {
	t.Helper()
	log := testLogger()
	store := &fakeStore{}
	conversations := NewConversationService(log)
	svc := NewChatService(store, conversations, fakeKnowledge{}, staticPrompt, client, cfg, log)

	conv, err := conversations.Create(context.Background(), "user-1", &model.CreateConversationRequest{Title: "Anfrage"})
	require.NoError(t, err)

	return &chatFixture{store: store, conversations: conversations, svc: svc, conv: conv}
}

// seedUserMessages plants n substantial user messages in history and counters.
func (f *chatFixture) seedUserMessages(t *testing.T, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		msg := &model.Message{
			ConversationID: f.conv.ID,
			UserID:         "user-1",
			Role:           model.RoleUser,
			Content:        substantialMessage(),
		}
		_, err := f.store.PublishMessage(ctx, msg)
		require.NoError(t, err)
		require.NoError(t, f.conversations.RecordMessage(ctx, "user-1", f.conv.ID, msg))
	}
}

func TestSendPlainReply(t *testing.T) {
	fx := newChatFixture(t, testConfig(), &fakeLLM{content: "Erzählen Sie mir mehr über Ihr Vorhaben."})

	resp, err := fx.svc.Send(context.Background(), "user-1", fx.conv.ID, &model.SendMessageRequest{
		Content: substantialMessage(),
	})

	require.NoError(t, err)
	require.NotNil(t, resp.UserMessage)
	require.NotNil(t, resp.AssistantMessage)
	assert.Equal(t, model.RoleAssistant, resp.AssistantMessage.Role)
	assert.Equal(t, "Erzählen Sie mir mehr über Ihr Vorhaben.", resp.AssistantMessage.Content)
	assert.Nil(t, resp.Offer)
	assert.False(t, resp.OfferSuppressed)

	// One turn appends two messages.
	conv, err := fx.conversations.Get(context.Background(), "user-1", fx.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, conv.MessageCount)
}

func TestSendAttachesOffer(t *testing.T) {
	fx := newChatFixture(t, testConfig(), &fakeLLM{content: offerReply})
	fx.seedUserMessages(t, 4)

	resp, err := fx.svc.Send(context.Background(), "user-1", fx.conv.ID, &model.SendMessageRequest{
		Content: substantialMessage(),
	})

	require.NoError(t, err)
	require.NotNil(t, resp.Offer)
	assert.Equal(t, "Projekt", resp.Offer.Title)
	assert.Equal(t, 2400.0, resp.Offer.TotalPrice)
	assert.False(t, resp.OfferSuppressed)
	assert.NotContains(t, resp.AssistantMessage.Content, "[ANGEBOT_START]")

	conv, err := fx.conversations.Get(context.Background(), "user-1", fx.conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, conv.OffersGenerated)
}

func TestSendSuppressesOfferBelowGate(t *testing.T) {
	// The new message is the only user message; the gate needs five.
	fx := newChatFixture(t, testConfig(), &fakeLLM{content: offerReply})

	resp, err := fx.svc.Send(context.Background(), "user-1", fx.conv.ID, &model.SendMessageRequest{
		Content: substantialMessage(),
	})

	require.NoError(t, err)
	assert.Nil(t, resp.Offer)
	assert.True(t, resp.OfferSuppressed)
	assert.Equal(t, OfferGateNotice, resp.Notice)
	assert.NotContains(t, resp.AssistantMessage.Content, "[ANGEBOT_START]", "the reply text survives suppression without the raw block")

	conv, err := fx.conversations.Get(context.Background(), "user-1", fx.conv.ID)
	require.NoError(t, err)
	assert.Zero(t, conv.OffersGenerated)
}

func TestSendSuppressesOfferAtQuota(t *testing.T) {
	fx := newChatFixture(t, testConfig(), &fakeLLM{content: offerReply})
	fx.seedUserMessages(t, 4)
	for i := 0; i < policy.MaxOffersPerConversation; i++ {
		require.NoError(t, fx.conversations.RecordOffer(context.Background(), "user-1", fx.conv.ID))
	}

	resp, err := fx.svc.Send(context.Background(), "user-1", fx.conv.ID, &model.SendMessageRequest{
		Content: substantialMessage(),
	})

	require.NoError(t, err)
	assert.Nil(t, resp.Offer)
	assert.True(t, resp.OfferSuppressed)
	assert.Equal(t, OfferQuotaNotice, resp.Notice)
	assert.NotEmpty(t, resp.OfferWarning)

	require.Len(t, fx.store.events, 1)
	assert.Equal(t, model.EventTypeOfferSuppressed, fx.store.events[0].Type)
	assert.Equal(t, "quota", fx.store.events[0].Reason)
}

func TestSendStrictModeSuppressesInvalidOffer(t *testing.T) {
	// One item at the minimum rate for a single hour: total 50 €, below the
	// acceptance minimum.
	tinyOffer := `[ANGEBOT_START]
{"title": "Mini", "description": "Sehr kleines Vorhaben", "items": [{"name": "Kurzberatung", "description": "Eine Stunde Beratung", "price": 50, "quantity": 1}], "totalPrice": 50}
[ANGEBOT_END]`

	cfg := testConfig()
	cfg.OfferValidationMode = config.ValidationStrict
	fx := newChatFixture(t, cfg, &fakeLLM{content: tinyOffer})
	fx.seedUserMessages(t, 4)

	resp, err := fx.svc.Send(context.Background(), "user-1", fx.conv.ID, &model.SendMessageRequest{
		Content: substantialMessage(),
	})

	require.NoError(t, err)
	assert.Nil(t, resp.Offer)
	assert.True(t, resp.OfferSuppressed)
	assert.Equal(t, OfferRejectedNotice, resp.Notice)
}

func TestSendPermissiveModeDeliversInvalidOffer(t *testing.T) {
	tinyOffer := `[ANGEBOT_START]
{"title": "Mini", "description": "Sehr kleines Vorhaben", "items": [{"name": "Kurzberatung", "description": "Eine Stunde Beratung", "price": 50, "quantity": 1}], "totalPrice": 50}
[ANGEBOT_END]`

	fx := newChatFixture(t, testConfig(), &fakeLLM{content: tinyOffer})
	fx.seedUserMessages(t, 4)

	resp, err := fx.svc.Send(context.Background(), "user-1", fx.conv.ID, &model.SendMessageRequest{
		Content: substantialMessage(),
	})

	require.NoError(t, err)
	require.NotNil(t, resp.Offer)
	assert.False(t, resp.OfferSuppressed)
}

func TestSendCollaboratorFailure(t *testing.T) {
	fx := newChatFixture(t, testConfig(), &fakeLLM{err: context.DeadlineExceeded})

	_, err := fx.svc.Send(context.Background(), "user-1", fx.conv.ID, &model.SendMessageRequest{
		Content: substantialMessage(),
	})

	var collabErr *CollaboratorError
	require.ErrorAs(t, err, &collabErr)
	assert.Equal(t, llm.FailureTimeout, collabErr.Kind)
	assert.NotEmpty(t, collabErr.Message)
	assert.NotContains(t, collabErr.Message, "deadline", "raw error text must not leak to the user")

	// The user message is already part of the history.
	require.Len(t, fx.store.messages, 1)
	assert.Equal(t, model.RoleUser, fx.store.messages[0].Role)

	require.Len(t, fx.store.events, 1)
	assert.Equal(t, model.EventTypeError, fx.store.events[0].Type)
}

func TestSendRejectsDisallowedContent(t *testing.T) {
	fx := newChatFixture(t, testConfig(), &fakeLLM{content: "ok"})

	_, err := fx.svc.Send(context.Background(), "user-1", fx.conv.ID, &model.SendMessageRequest{
		Content: "<script>alert(1)</script>",
	})

	require.Error(t, err)
	assert.Empty(t, fx.store.messages, "rejected input is never persisted")
}

func TestSendEnforcesMessageCap(t *testing.T) {
	fx := newChatFixture(t, testConfig(), &fakeLLM{content: "ok"})
	fx.seedUserMessages(t, policy.MaxMessagesPerConversation)

	_, err := fx.svc.Send(context.Background(), "user-1", fx.conv.ID, &model.SendMessageRequest{
		Content: substantialMessage(),
	})

	assert.ErrorIs(t, err, ErrMessageLimit)
}

func TestSendMessageWarningNearCap(t *testing.T) {
	fx := newChatFixture(t, testConfig(), &fakeLLM{content: "ok"})
	fx.seedUserMessages(t, 44)

	resp, err := fx.svc.Send(context.Background(), "user-1", fx.conv.ID, &model.SendMessageRequest{
		Content: substantialMessage(),
	})

	require.NoError(t, err)
	assert.Contains(t, resp.MessageWarning, "Noch")
}

func TestSendUnknownConversation(t *testing.T) {
	fx := newChatFixture(t, testConfig(), &fakeLLM{content: "ok"})

	_, err := fx.svc.Send(context.Background(), "user-1", "missing", &model.SendMessageRequest{
		Content: substantialMessage(),
	})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fx.svc.Send(context.Background(), "user-2", fx.conv.ID, &model.SendMessageRequest{
		Content: substantialMessage(),
	})
	assert.ErrorIs(t, err, ErrNotFound, "foreign conversations look missing")
}

func TestSendStreamForwardsTokens(t *testing.T) {
	fx := newChatFixture(t, testConfig(), &fakeLLM{content: "Hallo und willkommen"})

	var tokens []string
	resp, err := fx.svc.SendStream(context.Background(), "user-1", fx.conv.ID, &model.SendMessageRequest{
		Content: substantialMessage(),
	}, func(token string, index int) error {
		tokens = append(tokens, token)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Hallo und willkommen", strings.Join(tokens, ""))
	require.NotNil(t, resp.AssistantMessage)
	assert.Equal(t, "Hallo und willkommen", resp.AssistantMessage.Content)
}
