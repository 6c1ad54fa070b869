// Copyright 2025 Linktune Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package output

import "sync"

// OutputSubscriber consumes events from an OutputEventStream. Subscribers
// must not block for long; Emit fans events out synchronously.
type OutputSubscriber interface {
	// Name returns the subscriber identifier.
	Name() string

	// ShouldHandle decides if this subscriber cares about the event.
	ShouldHandle(event OutputEvent) bool

	// Handle processes an output event. Handle cannot return an error;
	// rendering failures are the subscriber's problem to absorb.
	Handle(event OutputEvent)
}

// OutputEventStream broadcasts output events to registered subscribers.
type OutputEventStream struct {
	mu          sync.RWMutex
	subscribers []OutputSubscriber
}

// NewOutputEventStream creates an empty stream.
func NewOutputEventStream() *OutputEventStream {
	return &OutputEventStream{}
}

// Subscribe registers a subscriber. Subscribing the same subscriber twice
// delivers every event twice; callers own de-duplication.
func (s *OutputEventStream) Subscribe(sub OutputSubscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, sub)
}

// SubscriberCount returns the number of registered subscribers.
func (s *OutputEventStream) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}

// Emit delivers the event to every subscriber whose ShouldHandle accepts it.
func (s *OutputEventStream) Emit(event OutputEvent) {
	s.mu.RLock()
	subs := make([]OutputSubscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, sub := range subs {
		if sub.ShouldHandle(event) {
			sub.Handle(event)
		}
	}
}
