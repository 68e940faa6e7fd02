package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/nhle/taskbot/internal/platform"
)

// SentMessage records a single delivery made through the FakeMessenger.
type SentMessage struct {
	ChannelID string
	UserID    string // set for direct messages
	Content   string
	Card      *platform.Card
	Actions   []platform.Action
}

// FakeMessenger is an in-memory platform.Messenger that records every call
// and can be told to fail specific operations.
type FakeMessenger struct {
	mu sync.Mutex

	Sent    []SentMessage
	Edits   []SentMessage
	Renames map[string][]string // threadID -> successive titles
	Threads map[string]string   // threadID -> current title

	// Fail* make the corresponding operation return an error.
	FailPersonalChannel bool
	FailManagement      bool
	FailDirect          bool
	FailSend            bool
	FailThread          bool
	FailRename          bool

	nextID int
}

// NewFakeMessenger creates an empty recorder.
func NewFakeMessenger() *FakeMessenger {
	return &FakeMessenger{
		Renames: make(map[string][]string),
		Threads: make(map[string]string),
	}
}

func (f *FakeMessenger) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// EnsurePersonalChannel returns a deterministic channel id per user.
func (f *FakeMessenger) EnsurePersonalChannel(_ context.Context, guildID, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailPersonalChannel {
		return "", fmt.Errorf("personal channel creation denied")
	}
	return "personal-" + userID, nil
}

// EnsureManagementChannel returns a deterministic management channel id.
func (f *FakeMessenger) EnsureManagementChannel(_ context.Context, guildID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailManagement {
		return "", fmt.Errorf("management channel creation denied")
	}
	return "mgmt-" + guildID, nil
}

// SendCard records a channel delivery.
func (f *FakeMessenger) SendCard(
	_ context.Context,
	channelID, content string,
	card *platform.Card,
	actions []platform.Action,
) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSend {
		return "", fmt.Errorf("send failed")
	}
	f.Sent = append(f.Sent, SentMessage{
		ChannelID: channelID, Content: content, Card: card, Actions: actions,
	})
	return f.id("msg"), nil
}

// SendDirect records a direct-message delivery.
func (f *FakeMessenger) SendDirect(
	_ context.Context,
	userID, content string,
	card *platform.Card,
	actions []platform.Action,
) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailDirect {
		return "", fmt.Errorf("direct message refused")
	}
	f.Sent = append(f.Sent, SentMessage{
		UserID: userID, Content: content, Card: card, Actions: actions,
	})
	return f.id("dm"), nil
}

// EditCard records an in-place edit.
func (f *FakeMessenger) EditCard(
	_ context.Context,
	channelID, messageID string,
	card *platform.Card,
	actions []platform.Action,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailSend {
		return fmt.Errorf("edit failed")
	}
	f.Edits = append(f.Edits, SentMessage{
		ChannelID: channelID, Content: messageID, Card: card, Actions: actions,
	})
	return nil
}

// StartThread creates a fake thread with the given title.
func (f *FakeMessenger) StartThread(_ context.Context, channelID, messageID, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailThread {
		return "", fmt.Errorf("thread creation denied")
	}
	threadID := f.id("thread")
	f.Threads[threadID] = name
	return threadID, nil
}

// ThreadName returns the current title of a fake thread.
func (f *FakeMessenger) ThreadName(_ context.Context, threadID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.Threads[threadID]
	if !ok {
		return "", fmt.Errorf("thread %s not found", threadID)
	}
	return name, nil
}

// RenameThread records a title change.
func (f *FakeMessenger) RenameThread(_ context.Context, threadID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailRename {
		return fmt.Errorf("rename refused")
	}
	f.Threads[threadID] = name
	f.Renames[threadID] = append(f.Renames[threadID], name)
	return nil
}

// DisplayName resolves to a deterministic name.
func (f *FakeMessenger) DisplayName(_ context.Context, guildID, userID string) string {
	return "user-" + userID
}

// DirectMessages returns the recorded deliveries that went to a user's DM.
func (f *FakeMessenger) DirectMessages(userID string) []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SentMessage
	for _, m := range f.Sent {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

// ChannelMessages returns the recorded deliveries to a channel.
func (f *FakeMessenger) ChannelMessages(channelID string) []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []SentMessage
	for _, m := range f.Sent {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out
}
