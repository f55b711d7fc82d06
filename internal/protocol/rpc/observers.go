package rpc

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

type observer struct {
	id uint64
	fn func()
}

// observerSet is the registry of out-of-band notification handlers.
type observerSet struct {
	mu      sync.RWMutex
	next    uint64
	byEvent map[string][]observer
}

func newObserverSet() *observerSet {
	return &observerSet{byEvent: make(map[string][]observer)}
}

func (o *observerSet) subscribe(event string, fn func()) func() {
	key := strings.TrimSpace(event)
	if key == "" || fn == nil {
		return func() {}
	}
	o.mu.Lock()
	o.next++
	id := o.next
	o.byEvent[key] = append(o.byEvent[key], observer{id: id, fn: fn})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.unsubscribe(key, id)
		})
	}
}

func (o *observerSet) unsubscribe(event string, id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	list := o.byEvent[event]
	for i, obs := range list {
		if obs.id != id {
			continue
		}
		next := make([]observer, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(o.byEvent, event)
		} else {
			o.byEvent[event] = next
		}
		return
	}
}

func (o *observerSet) count(event string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.byEvent[strings.TrimSpace(event)])
}

// notify calls every observer of event in registration order.
func (o *observerSet) notify(event string) int {
	o.mu.RLock()
	list := append([]observer(nil), o.byEvent[strings.TrimSpace(event)]...)
	o.mu.RUnlock()
	for _, obs := range list {
		callObserver(event, obs.fn)
	}
	return len(list)
}

func callObserver(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("event", event).Interface("panic", r).Msg("rpc observer panicked")
		}
	}()
	fn()
}
