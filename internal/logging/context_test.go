// Novelrec - Personalized Novel Recommendation Service
// Copyright 2026 M. Liang (mliang5)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mliang5/novelrec

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRequestIDRoundtrip(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("RequestIDFromContext(empty) = %q, want \"\"", got)
	}

	ctx = ContextWithRequestID(ctx, "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Errorf("RequestIDFromContext() = %q, want req-123", got)
	}
}

func TestGenerateRequestIDUnique(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if a == "" || a == b {
		t.Errorf("GenerateRequestID() produced %q and %q, want distinct non-empty IDs", a, b)
	}
}

func TestCtxReturnsStoredLogger(t *testing.T) {
	var buf bytes.Buffer
	stored := NewTestLogger(&buf).With().Str("request_id", "req-42").Logger()

	ctx := ContextWithLogger(context.Background(), stored)
	Ctx(ctx).Error().Msg("boom")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-42"`) {
		t.Errorf("output missing request_id field: %s", out)
	}
	if !strings.Contains(out, `"message":"boom"`) {
		t.Errorf("output missing message: %s", out)
	}
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(prev)

	ctx := ContextWithRequestID(context.Background(), "req-7")
	Ctx(ctx).Warn().Msg("fallback")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-7"`) {
		t.Errorf("fallback logger missing request_id: %s", out)
	}
	if !strings.Contains(out, `"message":"fallback"`) {
		t.Errorf("fallback logger missing message: %s", out)
	}
}
