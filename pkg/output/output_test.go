// Copyright 2025 Linktune Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package output_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/linktune/linktune/pkg/output"
	"github.com/linktune/linktune/pkg/output/subscribers"
)

// MockSubscriber is a test subscriber that records all events
type MockSubscriber struct {
	events []output.OutputEvent
	name   string
}

func NewMockSubscriber(name string) *MockSubscriber {
	return &MockSubscriber{
		events: make([]output.OutputEvent, 0),
		name:   name,
	}
}

func (m *MockSubscriber) Name() string {
	return m.name
}

func (m *MockSubscriber) ShouldHandle(event output.OutputEvent) bool {
	return true // Handle all events for testing
}

func (m *MockSubscriber) Handle(event output.OutputEvent) {
	m.events = append(m.events, event)
}

// TestOutputEventStream tests the OutputEventStream implementation
func TestOutputEventStream(t *testing.T) {
	t.Run("Subscribe and Emit", func(t *testing.T) {
		stream := output.NewOutputEventStream()
		mock := NewMockSubscriber("test")

		stream.Subscribe(mock)
		require.Equal(t, 1, stream.SubscriberCount())

		event := output.OutputEvent{
			Type:      output.EventInfo,
			Message:   "test message",
			Timestamp: time.Now(),
		}

		stream.Emit(event)

		require.Len(t, mock.events, 1)
		require.Equal(t, output.EventInfo, mock.events[0].Type)
		require.Equal(t, "test message", mock.events[0].Message)
	})

	t.Run("Multiple Subscribers", func(t *testing.T) {
		stream := output.NewOutputEventStream()
		mock1 := NewMockSubscriber("sub1")
		mock2 := NewMockSubscriber("sub2")

		stream.Subscribe(mock1)
		stream.Subscribe(mock2)
		require.Equal(t, 2, stream.SubscriberCount())

		event := output.OutputEvent{
			Type:      output.EventError,
			Message:   "error message",
			Timestamp: time.Now(),
		}

		stream.Emit(event)

		require.Len(t, mock1.events, 1)
		require.Len(t, mock2.events, 1)
	})
}

// TestDefaultOutput tests the DefaultOutput event conversion
func TestDefaultOutput(t *testing.T) {
	stream := output.NewOutputEventStream()
	mock := NewMockSubscriber("recorder")
	stream.Subscribe(mock)
	out := output.NewDefaultOutput(stream)

	out.Info("probing started")
	out.Error(errors.New("boom"))
	out.Warning("no candidates reachable")
	out.Table([]string{"Address", "Latency"}, [][]string{{"10.0.0.1", "12ms"}})
	out.Progress(1, 2, "halfway")
	out.Diag(output.LevelVerbose, "dropped line", map[string]any{"line": "x"})

	require.Len(t, mock.events, 6)
	require.Equal(t, output.EventInfo, mock.events[0].Type)
	require.Equal(t, output.EventError, mock.events[1].Type)
	require.Equal(t, "boom", mock.events[1].Message)
	require.Equal(t, output.EventWarning, mock.events[2].Type)
	require.Equal(t, output.EventTable, mock.events[3].Type)
	require.Equal(t, output.EventProgress, mock.events[4].Type)
	require.Equal(t, output.EventDiag, mock.events[5].Type)
	require.Equal(t, output.LevelVerbose, mock.events[5].Level)
}

// TestHumanFormatter checks plain (color-disabled) rendering paths
func TestHumanFormatter(t *testing.T) {
	var stdout, stderr bytes.Buffer
	formatter := subscribers.NewHumanFormatter(&stdout, &stderr, false)

	require.Equal(t, "human-formatter", formatter.Name())
	require.False(t, formatter.ShouldHandle(output.OutputEvent{Type: output.EventDiag}))
	require.True(t, formatter.ShouldHandle(output.OutputEvent{Type: output.EventInfo}))

	formatter.Handle(output.OutputEvent{Type: output.EventInfo, Message: "hello"})
	require.Contains(t, stdout.String(), "hello")

	formatter.Handle(output.OutputEvent{Type: output.EventError, Message: "broken"})
	require.Contains(t, stderr.String(), "Error: broken")

	formatter.Handle(output.OutputEvent{Type: output.EventWarning, Message: "careful"})
	require.Contains(t, stdout.String(), "Warning: careful")

	formatter.Handle(output.OutputEvent{
		Type: output.EventTable,
		Data: map[string]any{
			"headers": []string{"Address", "Latency"},
			"rows":    [][]string{{"10.0.0.1", "12ms"}},
		},
	})
	require.Contains(t, stdout.String(), "10.0.0.1")
}

// TestJSONFormatter checks JSON-lines rendering
func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	formatter := subscribers.NewJSONFormatter(&buf)

	require.Equal(t, "json-formatter", formatter.Name())
	require.False(t, formatter.ShouldHandle(output.OutputEvent{Type: output.EventDiag}))

	formatter.Handle(output.OutputEvent{
		Type:      output.EventInfo,
		Message:   "ranked 3 links",
		Timestamp: time.Now(),
	})

	line := strings.TrimSpace(buf.String())
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	require.Equal(t, "info", decoded["type"])
	require.Equal(t, "ranked 3 links", decoded["message"])
}

// TestDiagnosticSubscriber checks verbosity gating
func TestDiagnosticSubscriber(t *testing.T) {
	var buf bytes.Buffer
	sub := subscribers.NewDiagnosticSubscriber(&buf, output.LevelVerbose)

	require.True(t, sub.ShouldHandle(output.OutputEvent{Type: output.EventDiag, Level: output.LevelVerbose}))
	require.False(t, sub.ShouldHandle(output.OutputEvent{Type: output.EventDiag, Level: output.LevelDebug}))
	require.False(t, sub.ShouldHandle(output.OutputEvent{Type: output.EventInfo}))

	sub.Handle(output.OutputEvent{
		Type:     output.EventDiag,
		Level:    output.LevelVerbose,
		Message:  "dropped invalid line",
		Metadata: map[string]any{"line": "bogus"},
	})
	require.Contains(t, buf.String(), "dropped invalid line")
	require.Contains(t, buf.String(), "line=bogus")

	silent := subscribers.NewDiagnosticSubscriber(&buf, output.LevelNormal)
	require.False(t, silent.ShouldHandle(output.OutputEvent{Type: output.EventDiag, Level: output.LevelVerbose}))
}
