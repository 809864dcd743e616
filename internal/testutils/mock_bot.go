package testutils

import (
	"fmt"
	"sync"
)

// MockMessage captures a single message sent or edited through MockSender.
type MockMessage struct {
	ChatID    int64
	MessageID int
	Text      string
}

// MockDocument captures a single document sent through MockSender.
type MockDocument struct {
	ChatID  int64
	Path    string
	Caption string
}

// MockSender implements telegram.Sender for testing.
type MockSender struct {
	// SendDocumentError, if set, is returned by SendDocument.
	SendDocumentError error

	mu            sync.Mutex
	nextID        int
	SentMessages  []MockMessage
	Edits         []MockMessage
	SentDocuments []MockDocument
}

func (m *MockSender) SendText(chatID int64, text string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.SentMessages = append(m.SentMessages, MockMessage{ChatID: chatID, MessageID: m.nextID, Text: text})
	return m.nextID, nil
}

func (m *MockSender) EditText(chatID int64, messageID int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if messageID <= 0 || messageID > m.nextID {
		return fmt.Errorf("message %d not found", messageID)
	}
	m.Edits = append(m.Edits, MockMessage{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (m *MockSender) SendDocument(chatID int64, path, caption string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendDocumentError != nil {
		return m.SendDocumentError
	}
	m.SentDocuments = append(m.SentDocuments, MockDocument{ChatID: chatID, Path: path, Caption: caption})
	return nil
}

// Messages returns a copy of the sent messages.
func (m *MockSender) Messages() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockMessage(nil), m.SentMessages...)
}

// EditedTexts returns a copy of the edits.
func (m *MockSender) EditedTexts() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockMessage(nil), m.Edits...)
}

// Documents returns a copy of the sent documents.
func (m *MockSender) Documents() []MockDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockDocument(nil), m.SentDocuments...)
}

// LastText is the text of the latest message or edit, or "" if none.
func (m *MockSender) LastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Edits) > 0 {
		return m.Edits[len(m.Edits)-1].Text
	}
	if len(m.SentMessages) > 0 {
		return m.SentMessages[len(m.SentMessages)-1].Text
	}
	return ""
}
