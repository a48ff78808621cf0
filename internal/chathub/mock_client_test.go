package chathub_test

import (
	"civicdesk/backend/internal/chathub"
	"sync"
)

type MockClient struct {
	id          chathub.Identity
	RecvChannel chan chathub.Frame

	mu     sync.Mutex
	closed int
}

func newMockClient(id chathub.Identity) *MockClient {
	return &MockClient{
		id:          id,
		RecvChannel: make(chan chathub.Frame, 10),
	}
}

func (c *MockClient) Identity() chathub.Identity { return c.id }

func (c *MockClient) GetSendChannel() chan<- chathub.Frame {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
}

func (c *MockClient) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
