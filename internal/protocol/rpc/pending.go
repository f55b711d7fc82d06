package rpc

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Ribbit-Nova/ribbit-wallet-connect-demo/internal/protocol"
)

// PendingRequest tracks one call awaiting its reply.
type PendingRequest struct {
	ID        string
	Method    protocol.Method
	CreatedAt time.Time
	Deadline  time.Time
}

type pendingEntry struct {
	req  PendingRequest
	done chan protocol.Envelope
}

// pendingTable stores in-flight requests by correlation id.
type pendingTable struct {
	mu    sync.Mutex
	items map[string]*pendingEntry
}

func newPendingTable() *pendingTable {
	return &pendingTable{items: make(map[string]*pendingEntry)}
}

// insert registers req; it reports false when the id is empty or already in flight.
func (p *pendingTable) insert(req PendingRequest) (*pendingEntry, bool) {
	key := strings.TrimSpace(req.ID)
	if key == "" {
		return nil, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, live := p.items[key]; live {
		return nil, false
	}
	entry := &pendingEntry{req: req, done: make(chan protocol.Envelope, 1)}
	p.items[key] = entry
	return entry, true
}

// resolve hands reply to its waiter and removes the entry. It reports false
// when no request with that id is outstanding.
func (p *pendingTable) resolve(reply protocol.Envelope) (PendingRequest, bool) {
	key := strings.TrimSpace(reply.ID)
	p.mu.Lock()
	entry, ok := p.items[key]
	if ok {
		delete(p.items, key)
	}
	p.mu.Unlock()
	if !ok {
		return PendingRequest{}, false
	}
	entry.done <- reply
	return entry.req, true
}

func (p *pendingTable) remove(id string) {
	key := strings.TrimSpace(id)
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.items, key)
}

// drain removes every entry and returns them.
func (p *pendingTable) drain() []*pendingEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*pendingEntry, 0, len(p.items))
	for key, entry := range p.items {
		out = append(out, entry)
		delete(p.items, key)
	}
	return out
}

func (p *pendingTable) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

func (p *pendingTable) list() []PendingRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PendingRequest, 0, len(p.items))
	for _, entry := range p.items {
		out = append(out, entry.req)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}
