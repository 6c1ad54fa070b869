// Copyright 2025 Linktune Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package subscribers

import (
	"fmt"
	"io"
	"sort"

	"github.com/linktune/linktune/pkg/output"
)

// DiagnosticSubscriber renders EventDiag events up to a maximum verbosity
// level. It is registered alongside HumanFormatter/JSONFormatter, which skip
// diagnostics entirely.
type DiagnosticSubscriber struct {
	writer   io.Writer
	maxLevel output.OutputLevel
}

// NewDiagnosticSubscriber creates a subscriber that shows diagnostics at or
// below maxLevel. With maxLevel = LevelNormal nothing is shown.
func NewDiagnosticSubscriber(writer io.Writer, maxLevel output.OutputLevel) *DiagnosticSubscriber {
	return &DiagnosticSubscriber{
		writer:   writer,
		maxLevel: maxLevel,
	}
}

// Name returns the subscriber identifier.
func (s *DiagnosticSubscriber) Name() string {
	return "diagnostic-subscriber"
}

// ShouldHandle accepts only diagnostic events at or below the configured
// verbosity.
func (s *DiagnosticSubscriber) ShouldHandle(event output.OutputEvent) bool {
	return event.Type == output.EventDiag && event.Level <= s.maxLevel && s.maxLevel > output.LevelNormal
}

// Handle renders the diagnostic line with its metadata in stable key order.
func (s *DiagnosticSubscriber) Handle(event output.OutputEvent) {
	if len(event.Metadata) == 0 {
		_, _ = fmt.Fprintf(s.writer, "[diag] %s\n", event.Message)
		return
	}

	keys := make([]string, 0, len(event.Metadata))
	for k := range event.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	line := "[diag] " + event.Message
	for _, k := range keys {
		line += fmt.Sprintf(" %s=%v", k, event.Metadata[k])
	}
	_, _ = fmt.Fprintln(s.writer, line)
}
