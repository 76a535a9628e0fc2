package observability

import (
	"context"
	"testing"

	"github.com/yungbote/personaforge-backend/internal/platform/logger"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders(" api-key = abc , bad, =x, team=core ")
	if len(got) != 2 || got["api-key"] != "abc" || got["team"] != "core" {
		t.Fatalf("ParseHeaders: %v", got)
	}
	if ParseHeaders("") != nil {
		t.Fatalf("empty headers should be nil")
	}
}

func TestInitOTelDisabled(t *testing.T) {
	shutdown := InitOTel(context.Background(), logger.Nop(), OtelConfig{})
	if shutdown == nil {
		t.Fatalf("shutdown must never be nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestClampRatio(t *testing.T) {
	cases := map[float64]float64{0: 0.1, -1: 0.1, 0.5: 0.5, 2: 1}
	for in, want := range cases {
		if got := clampRatio(in); got != want {
			t.Fatalf("clampRatio(%v) = %v want %v", in, got, want)
		}
	}
}
