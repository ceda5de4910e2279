package discord

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

// --- Mock session ---

type mockSession struct {
	mu        sync.Mutex
	opened    bool
	closed    bool
	openErr   error
	handlers  []interface{}
	sent      []sentMessage
	sendErr   error
	messages  map[string][]*discordgo.Message // channelID -> newest-first pages
	msgErr    error
	msgCalls  []msgCall
	channels  map[string]*discordgo.Channel
	users     map[string]*discordgo.User
	userCalls int
}

type sentMessage struct {
	channelID string
	content   string
}

type msgCall struct {
	channelID string
	limit     int
	beforeID  string
}

func newMockSession() *mockSession {
	return &mockSession{
		messages: make(map[string][]*discordgo.Message),
		channels: make(map[string]*discordgo.Channel),
		users:    make(map[string]*discordgo.User),
	}
}

func (m *mockSession) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = true
	return nil
}

func (m *mockSession) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSession) Channel(channelID string) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[channelID]; ok {
		return ch, nil
	}
	return nil, fmt.Errorf("channel not in state: %s", channelID)
}

func (m *mockSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, sentMessage{channelID: channelID, content: content})
	return &discordgo.Message{ID: "sent-1", ChannelID: channelID, Content: content}, nil
}

func (m *mockSession) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.msgErr != nil {
		return nil, m.msgErr
	}
	m.msgCalls = append(m.msgCalls, msgCall{channelID: channelID, limit: limit, beforeID: beforeID})

	msgs := m.messages[channelID]
	if beforeID != "" {
		// Return messages after the cursor position.
		idx := -1
		for i, msg := range msgs {
			if msg.ID == beforeID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil
		}
		msgs = msgs[idx+1:]
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (m *mockSession) User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userCalls++
	if u, ok := m.users[userID]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user not found: %s", userID)
}

func (m *mockSession) AddHandler(handler interface{}) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
	return func() {}
}

// fireMessage invokes all registered MessageCreate handlers.
func (m *mockSession) fireMessage(mc *discordgo.MessageCreate) {
	m.mu.Lock()
	handlers := make([]interface{}, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for _, h := range handlers {
		if fn, ok := h.(func(*discordgo.Session, *discordgo.MessageCreate)); ok {
			fn(nil, mc)
		}
	}
}

// fireReady invokes all registered Ready handlers.
func (m *mockSession) fireReady(r *discordgo.Ready) {
	m.mu.Lock()
	handlers := make([]interface{}, len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for _, h := range handlers {
		if fn, ok := h.(func(*discordgo.Session, *discordgo.Ready)); ok {
			fn(nil, r)
		}
	}
}

func newTestAdapter(t *testing.T) (*Adapter, *mockSession) {
	t.Helper()
	sess := newMockSession()
	a, err := New(AdapterOpts{Session: sess})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return a, sess
}

func userMessage(id, channelID, authorID, text string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        id,
			ChannelID: channelID,
			Content:   text,
			Author:    &discordgo.User{ID: authorID, Username: "user-" + authorID},
		},
	}
}

// --- New / Connect tests ---

func TestNew_RequiresBotToken(t *testing.T) {
	_, err := New(AdapterOpts{})
	if err == nil {
		t.Fatal("expected error for missing bot token")
	}
}

func TestConnect_OpensGateway(t *testing.T) {
	_, sess := newTestAdapter(t)
	if !sess.opened {
		t.Errorf("gateway not opened")
	}
}

func TestConnect_OpenError(t *testing.T) {
	sess := newMockSession()
	sess.openErr = fmt.Errorf("gateway unavailable")
	a, _ := New(AdapterOpts{Session: sess})

	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("expected open error")
	}
}

func TestConnect_ReadyCapturesBotUserID(t *testing.T) {
	a, sess := newTestAdapter(t)

	sess.fireReady(&discordgo.Ready{User: &discordgo.User{ID: "BOT9", Username: "swb"}})
	if a.BotUserID() != "BOT9" {
		t.Errorf("bot user ID = %q, want BOT9", a.BotUserID())
	}
}

// --- Listen tests ---

func TestListen_NotConnected(t *testing.T) {
	a, _ := New(AdapterOpts{Session: newMockSession()})
	if _, err := a.Listen(context.Background()); err == nil {
		t.Fatal("expected error for not connected")
	}
}

func TestListen_ReceivesMessages(t *testing.T) {
	a, sess := newTestAdapter(t)

	ch, err := a.Listen(context.Background())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	sess.fireMessage(userMessage("111", "C1", "U_ALICE", "hello"))

	select {
	case msg := <-ch:
		if msg.Platform != "discord" {
			t.Errorf("platform = %q, want discord", msg.Platform)
		}
		if msg.ChannelID != "C1" {
			t.Errorf("channel = %q, want C1", msg.ChannelID)
		}
		if msg.EventTS != "111" {
			t.Errorf("event ts = %q, want message ID", msg.EventTS)
		}
		if msg.ThreadID != "" {
			t.Errorf("thread = %q, want empty", msg.ThreadID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for inbound message")
	}
}

func TestListen_ResolvesThreadParent(t *testing.T) {
	a, sess := newTestAdapter(t)
	sess.channels["T1"] = &discordgo.Channel{
		ID:       "T1",
		ParentID: "C1",
		Type:     discordgo.ChannelTypeGuildPublicThread,
	}

	ch, _ := a.Listen(context.Background())
	sess.fireMessage(userMessage("222", "T1", "U_ALICE", "in thread"))

	select {
	case msg := <-ch:
		if msg.ChannelID != "C1" {
			t.Errorf("channel = %q, want parent C1", msg.ChannelID)
		}
		if msg.ThreadID != "T1" {
			t.Errorf("thread = %q, want T1", msg.ThreadID)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for inbound message")
	}
}

func TestListen_FlagsBotAuthors(t *testing.T) {
	a, sess := newTestAdapter(t)

	ch, _ := a.Listen(context.Background())
	mc := userMessage("333", "C1", "U_OTHER_BOT", "automated")
	mc.Author.Bot = true
	sess.fireMessage(mc)

	select {
	case msg := <-ch:
		if !msg.Bot {
			t.Errorf("bot-authored message not flagged")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for inbound message")
	}
}

// --- PostMessage tests ---

func TestPostMessage(t *testing.T) {
	a, sess := newTestAdapter(t)

	if err := a.PostMessage(context.Background(), "C1", "reply", ""); err != nil {
		t.Fatalf("post message: %v", err)
	}
	if len(sess.sent) != 1 || sess.sent[0].channelID != "C1" {
		t.Errorf("sent = %+v", sess.sent)
	}
}

func TestPostMessage_ThreadTargetsThreadChannel(t *testing.T) {
	a, sess := newTestAdapter(t)

	if err := a.PostMessage(context.Background(), "C1", "reply", "T1"); err != nil {
		t.Fatalf("post message: %v", err)
	}
	if sess.sent[0].channelID != "T1" {
		t.Errorf("sent to %q, want thread T1", sess.sent[0].channelID)
	}
}

func TestPostMessage_RequiresChannel(t *testing.T) {
	a, _ := newTestAdapter(t)
	if err := a.PostMessage(context.Background(), "", "text", ""); err == nil {
		t.Fatal("expected error for missing channel")
	}
}

// --- History tests ---

func TestHistory_ReversesAndBounds(t *testing.T) {
	a, sess := newTestAdapter(t)
	now := time.Now()
	sess.messages["C1"] = []*discordgo.Message{
		{ID: "3", ChannelID: "C1", Content: "newest", Timestamp: now,
			Author: &discordgo.User{ID: "U1", Username: "alice"}},
		{ID: "2", ChannelID: "C1", Content: "middle", Timestamp: now.Add(-10 * time.Second),
			Author: &discordgo.User{ID: "U1", Username: "alice"}},
		{ID: "1", ChannelID: "C1", Content: "too old", Timestamp: now.Add(-5 * time.Minute),
			Author: &discordgo.User{ID: "U1", Username: "alice"}},
	}

	msgs, err := a.History(context.Background(), "C1", now.Add(-30*time.Second), 0, false)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (bound excludes the old one)", len(msgs))
	}
	if msgs[0].Text != "middle" || msgs[1].Text != "newest" {
		t.Errorf("messages not oldest-first: %q, %q", msgs[0].Text, msgs[1].Text)
	}
	if msgs[0].EventTS != "2" {
		t.Errorf("event ts = %q, want message ID 2", msgs[0].EventTS)
	}
}

func TestHistory_Error(t *testing.T) {
	a, sess := newTestAdapter(t)
	sess.msgErr = fmt.Errorf("missing access")

	if _, err := a.History(context.Background(), "C1", time.Now(), 0, false); err == nil {
		t.Fatal("expected error")
	}
}

// --- ResolveDisplayName tests ---

func TestResolveDisplayName(t *testing.T) {
	a, sess := newTestAdapter(t)
	sess.users["U1"] = &discordgo.User{ID: "U1", Username: "alice"}

	if got := a.ResolveDisplayName("U1"); got != "alice" {
		t.Errorf("name = %q, want alice", got)
	}
	a.ResolveDisplayName("U1")
	if sess.userCalls != 1 {
		t.Errorf("user lookups = %d, want 1 (cached)", sess.userCalls)
	}
}

func TestResolveDisplayName_UnknownUser(t *testing.T) {
	a, _ := newTestAdapter(t)
	if got := a.ResolveDisplayName("U_NOBODY"); got != "U_NOBODY" {
		t.Errorf("name = %q, want user ID fallback", got)
	}
}

// --- Close tests ---

func TestClose_ClosesSession(t *testing.T) {
	a, sess := newTestAdapter(t)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !sess.closed {
		t.Errorf("session not closed")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
