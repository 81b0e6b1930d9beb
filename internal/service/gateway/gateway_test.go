package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/patipanbank/MFULearnAi/internal/model"
	"github.com/patipanbank/MFULearnAi/internal/service/agent"
	"github.com/patipanbank/MFULearnAi/internal/service/chat"
	"github.com/patipanbank/MFULearnAi/internal/service/queue"
	"github.com/patipanbank/MFULearnAi/internal/service/registry"
	"github.com/patipanbank/MFULearnAi/internal/service/stream"
	"github.com/patipanbank/MFULearnAi/internal/testutil"
)

const (
	testUserID = "user-1"
	testChatID = "507f1f77bcf86cd799439011"
)

type fakeConn struct {
	inbound     [][]byte
	sent        [][]byte
	closed      bool
	closeCode   int
	closeReason string
}

func (c *fakeConn) Read() ([]byte, error) {
	if len(c.inbound) == 0 {
		return nil, io.EOF
	}
	payload := c.inbound[0]
	c.inbound = c.inbound[1:]
	return payload, nil
}

func (c *fakeConn) Send(payload []byte) error {
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	return nil
}

func (c *fakeConn) frames(t *testing.T) []stream.Frame {
	t.Helper()
	var frames []stream.Frame
	for _, payload := range c.sent {
		if string(payload) == "pong" {
			frames = append(frames, stream.Frame{Type: "pong"})
			continue
		}
		var frame stream.Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			t.Fatalf("failed to decode outbound frame %s: %v", payload, err)
		}
		frames = append(frames, frame)
	}
	return frames
}

type mockVerifier struct {
	users map[string]string
}

func (m *mockVerifier) Verify(token string) (string, error) {
	userID, ok := m.users[token]
	if !ok {
		return "", ErrInvalidToken
	}
	return userID, nil
}

type mockChatStore struct {
	chats       map[string]*model.Chat
	messages    map[string][]*model.ChatMessage
	appendError error
}

func newMockChatStore() *mockChatStore {
	return &mockChatStore{
		chats:    make(map[string]*model.Chat),
		messages: make(map[string][]*model.ChatMessage),
	}
}

func (m *mockChatStore) CreateChat(ctx context.Context, userID, name, agentID, modelID string) (*model.Chat, error) {
	c := &model.Chat{
		ID:          chat.NewChatID(),
		UserID:      userID,
		Name:        name,
		AgentID:     agentID,
		ModelID:     modelID,
		Temperature: 0.7,
		MaxTokens:   4000,
	}
	m.chats[c.ID] = c
	return c, nil
}

func (m *mockChatStore) EnsureChat(ctx context.Context, chatID, userID string) (*model.Chat, error) {
	if c, ok := m.chats[chatID]; ok {
		if c.UserID != userID {
			return nil, chat.ErrNotOwner
		}
		return c, nil
	}
	c := &model.Chat{ID: chatID, UserID: userID, Temperature: 0.7, MaxTokens: 4000}
	m.chats[chatID] = c
	return c, nil
}

func (m *mockChatStore) GetOwnedChat(ctx context.Context, chatID, userID string) (*model.Chat, error) {
	c, ok := m.chats[chatID]
	if !ok {
		return nil, chat.ErrChatNotFound
	}
	if c.UserID != userID {
		return nil, chat.ErrNotOwner
	}
	return c, nil
}

func (m *mockChatStore) AppendMessage(ctx context.Context, chatID string, msg *model.ChatMessage) error {
	if m.appendError != nil {
		return m.appendError
	}
	m.messages[chatID] = append(m.messages[chatID], msg)
	return nil
}

type mockAgentConfigs struct {
	configs map[string]*agent.Config
}

func (m *mockAgentConfigs) GetConfig(ctx context.Context, agentID string) (*agent.Config, error) {
	cfg, ok := m.configs[agentID]
	if !ok {
		return nil, agent.ErrAgentNotFound
	}
	return cfg, nil
}

// mockDispatcher 在投递时同时记录房间当前的注册连接数
type mockDispatcher struct {
	registry      *registry.Registry
	jobs          []*queue.Job
	registeredAt  []int
	dispatchError error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, job *queue.Job) error {
	if m.dispatchError != nil {
		return m.dispatchError
	}
	m.jobs = append(m.jobs, job)
	m.registeredAt = append(m.registeredAt, m.registry.ConnectionCount(job.SessionID))
	return nil
}

type harness struct {
	gateway    *Gateway
	store      *mockChatStore
	agents     *mockAgentConfigs
	registry   *registry.Registry
	dispatcher *mockDispatcher
}

func newHarness() *harness {
	reg := registry.New()
	store := newMockChatStore()
	agents := &mockAgentConfigs{configs: make(map[string]*agent.Config)}
	dispatcher := &mockDispatcher{registry: reg}
	verifier := &mockVerifier{users: map[string]string{"good-token": testUserID, "other-token": "user-2"}}
	return &harness{
		gateway:    New(verifier, store, agents, reg, dispatcher),
		store:      store,
		agents:     agents,
		registry:   reg,
		dispatcher: dispatcher,
	}
}

func jsonFrame(t *testing.T, v interface{}) []byte {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal frame: %v", err)
	}
	return payload
}

func TestHandleConnectionAuthFailure(t *testing.T) {
	h := newHarness()
	conn := &fakeConn{inbound: [][]byte{[]byte(`{"type":"ping"}`)}}

	h.gateway.HandleConnection(context.Background(), conn, "bad-token")

	if !conn.closed || conn.closeCode != ClosePolicyViolation {
		t.Errorf("expected close with policy-violation code, got closed=%v code=%d", conn.closed, conn.closeCode)
	}
	if len(conn.sent) != 0 {
		t.Errorf("expected no frames after auth failure, got %d", len(conn.sent))
	}
}

func TestPingRepliesPong(t *testing.T) {
	h := newHarness()
	conn := &fakeConn{inbound: [][]byte{[]byte(`{"type":"ping"}`)}}

	h.gateway.HandleConnection(context.Background(), conn, "good-token")

	if len(conn.sent) != 1 || string(conn.sent[0]) != "pong" {
		t.Errorf("expected raw pong reply, got %v", conn.sent)
	}
}

func TestCreateRoomThenMessage(t *testing.T) {
	h := newHarness()
	h.agents.configs["A1"] = &agent.Config{
		ModelID:      "gpt-4o",
		SystemPrompt: "Be helpful.",
		Temperature:  0.5,
		MaxTokens:    2000,
	}
	conn := &fakeConn{inbound: [][]byte{
		jsonFrame(t, map[string]string{"type": "create_room", "agent_id": "A1"}),
		jsonFrame(t, map[string]string{"type": "message", "text": "hi"}),
	}}

	h.gateway.HandleConnection(context.Background(), conn, "good-token")

	frames := conn.frames(t)
	if len(frames) != 2 {
		t.Fatalf("expected room_created + accepted, got %v", frames)
	}
	if frames[0].Type != "room_created" {
		t.Fatalf("expected room_created first, got %s", frames[0].Type)
	}
	created := frames[0].Data.(map[string]interface{})
	chatID, _ := created["chatId"].(string)
	if !chatIDPattern.MatchString(chatID) {
		t.Errorf("expected 24-hex chat id, got %q", chatID)
	}
	if frames[1].Type != "accepted" {
		t.Errorf("expected accepted after message, got %s", frames[1].Type)
	}

	msgs := h.store.messages[chatID]
	if len(msgs) != 1 || msgs[0].Role != "user" || msgs[0].Content != "hi" {
		t.Fatalf("expected persisted user message, got %v", msgs)
	}
	if len(h.dispatcher.jobs) != 1 {
		t.Fatalf("expected one dispatched job, got %d", len(h.dispatcher.jobs))
	}
	job := h.dispatcher.jobs[0]
	if job.SessionID != chatID || job.Message != "hi" {
		t.Errorf("unexpected job: %+v", job)
	}
	if job.ModelID != "gpt-4o" || job.SystemPrompt != "Be helpful." || job.Temperature != 0.5 || job.MaxTokens != 2000 {
		t.Errorf("agent configuration not carried into job: %+v", job)
	}
}

func TestMessageRegistersBeforeDispatch(t *testing.T) {
	h := newHarness()
	h.store.chats[testChatID] = testutil.NewTestChat(testChatID, testUserID)
	conn := &fakeConn{inbound: [][]byte{
		jsonFrame(t, map[string]string{"type": "message", "chatId": testChatID, "text": "hi"}),
	}}

	h.gateway.HandleConnection(context.Background(), conn, "good-token")

	if len(h.dispatcher.registeredAt) != 1 || h.dispatcher.registeredAt[0] != 1 {
		t.Errorf("connection must be registered before dispatch, counts=%v", h.dispatcher.registeredAt)
	}
}

func TestMessageInvalidChatIDKeepsRoom(t *testing.T) {
	h := newHarness()
	h.store.chats[testChatID] = testutil.NewTestChat(testChatID, testUserID)
	conn := &fakeConn{inbound: [][]byte{
		jsonFrame(t, map[string]string{"type": "join_room", "chatId": testChatID}),
		jsonFrame(t, map[string]string{"type": "message", "chatId": "bad-id", "text": "hi"}),
	}}

	h.gateway.HandleConnection(context.Background(), conn, "good-token")

	frames := conn.frames(t)
	if frames[0].Type != "room_joined" {
		t.Fatalf("expected room_joined, got %s", frames[0].Type)
	}
	if frames[1].Type != "error" || frames[1].Data != "Invalid or missing chatId" {
		t.Errorf("expected typed error frame, got %+v", frames[1])
	}
	if len(h.dispatcher.jobs) != 0 {
		t.Errorf("invalid chat id must not dispatch, got %d jobs", len(h.dispatcher.jobs))
	}
	if conn.closed {
		t.Error("invalid chat id on message frame must not close the connection")
	}
}

func TestJoinRoomOwnershipRejected(t *testing.T) {
	h := newHarness()
	h.store.chats[testChatID] = testutil.NewTestChat(testChatID, testUserID)
	conn := &fakeConn{inbound: [][]byte{
		jsonFrame(t, map[string]string{"type": "join_room", "chatId": testChatID}),
	}}

	h.gateway.HandleConnection(context.Background(), conn, "other-token")

	if !conn.closed || conn.closeCode != ClosePolicyViolation {
		t.Errorf("expected policy-violation close, got closed=%v code=%d", conn.closed, conn.closeCode)
	}
	if h.registry.RoomCount() != 0 {
		t.Errorf("intruder must not be registered, rooms=%d", h.registry.RoomCount())
	}
}

func TestLegacyFrameCreatesRoomAndDispatches(t *testing.T) {
	h := newHarness()
	conn := &fakeConn{inbound: [][]byte{
		jsonFrame(t, map[string]interface{}{
			"session_id":       testChatID,
			"message":          "hello",
			"model_id":         "gpt-4o-mini",
			"collection_names": []string{"docs"},
		}),
	}}

	h.gateway.HandleConnection(context.Background(), conn, "good-token")

	frames := conn.frames(t)
	if len(frames) != 1 || frames[0].Type != "accepted" {
		t.Fatalf("expected accepted ack, got %v", frames)
	}
	if _, ok := h.store.chats[testChatID]; !ok {
		t.Error("legacy frame must create the room if absent")
	}
	if len(h.dispatcher.jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(h.dispatcher.jobs))
	}
	job := h.dispatcher.jobs[0]
	if job.SessionID != testChatID || job.ModelID != "gpt-4o-mini" {
		t.Errorf("unexpected job: %+v", job)
	}
	if len(job.CollectionNames) != 1 || job.CollectionNames[0] != "docs" {
		t.Errorf("collection names not carried: %v", job.CollectionNames)
	}
}

func TestUnknownFrameTypeIgnored(t *testing.T) {
	h := newHarness()
	conn := &fakeConn{inbound: [][]byte{
		jsonFrame(t, map[string]string{"type": "subscribe"}),
		jsonFrame(t, map[string]string{"type": "ping"}),
	}}

	h.gateway.HandleConnection(context.Background(), conn, "good-token")

	if len(conn.sent) != 1 || string(conn.sent[0]) != "pong" {
		t.Errorf("unknown frame must stay silent, got %v", conn.sent)
	}
}

func TestMalformedJSONDoesNotTerminate(t *testing.T) {
	h := newHarness()
	conn := &fakeConn{inbound: [][]byte{
		[]byte(`{not json`),
		jsonFrame(t, map[string]string{"type": "ping"}),
	}}

	h.gateway.HandleConnection(context.Background(), conn, "good-token")

	if len(conn.sent) != 1 || string(conn.sent[0]) != "pong" {
		t.Errorf("expected loop to survive malformed frame, got %v", conn.sent)
	}
	if conn.closed {
		t.Error("malformed frame must not close the connection")
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	h := newHarness()
	h.store.chats[testChatID] = testutil.NewTestChat(testChatID, testUserID)
	conn := &fakeConn{inbound: [][]byte{
		jsonFrame(t, map[string]string{"type": "join_room", "chatId": testChatID}),
	}}

	h.gateway.HandleConnection(context.Background(), conn, "good-token")

	if h.registry.RoomCount() != 0 {
		t.Errorf("expected empty registry after disconnect, got %d rooms", h.registry.RoomCount())
	}
}

func TestRoomSwitchUnregistersPrevious(t *testing.T) {
	h := newHarness()
	secondID := "507f1f77bcf86cd799439022"
	h.store.chats[testChatID] = testutil.NewTestChat(testChatID, testUserID)
	h.store.chats[secondID] = testutil.NewTestChat(secondID, testUserID)
	conn := &fakeConn{inbound: [][]byte{
		jsonFrame(t, map[string]string{"type": "join_room", "chatId": testChatID}),
		jsonFrame(t, map[string]string{"type": "message", "chatId": secondID, "text": "hi"}),
	}}

	h.gateway.HandleConnection(context.Background(), conn, "good-token")

	if len(h.dispatcher.registeredAt) != 1 || h.dispatcher.registeredAt[0] != 1 {
		t.Fatalf("expected registration on the new room at dispatch time")
	}
	if h.dispatcher.jobs[0].SessionID != secondID {
		t.Errorf("job targeted wrong room: %s", h.dispatcher.jobs[0].SessionID)
	}
}

func TestPersistFailureEmitsErrorAndSkipsDispatch(t *testing.T) {
	h := newHarness()
	h.store.chats[testChatID] = testutil.NewTestChat(testChatID, testUserID)
	h.store.appendError = errors.New("db down")
	conn := &fakeConn{inbound: [][]byte{
		jsonFrame(t, map[string]string{"type": "message", "chatId": testChatID, "text": "hi"}),
	}}

	h.gateway.HandleConnection(context.Background(), conn, "good-token")

	frames := conn.frames(t)
	if len(frames) != 1 || frames[0].Type != "error" {
		t.Fatalf("expected error frame, got %v", frames)
	}
	if len(h.dispatcher.jobs) != 0 {
		t.Errorf("persist failure must not dispatch, got %d jobs", len(h.dispatcher.jobs))
	}
	if conn.closed {
		t.Error("persist failure must not close the connection")
	}
}
