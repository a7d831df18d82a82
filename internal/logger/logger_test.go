package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &Logger{SugaredLogger: zap.New(core).Sugar()}, logs
}

func TestScopedHelpersAttachComponentKeys(t *testing.T) {
	cases := []struct {
		key   string
		scope func(*Logger, string) *Logger
	}{
		{"service", (*Logger).Service},
		{"repo", (*Logger).Repo},
		{"handler", (*Logger).Handler},
		{"middleware", (*Logger).Middleware},
		{"client", (*Logger).Client},
	}
	for _, tc := range cases {
		log, logs := observedLogger()
		tc.scope(log, "Component").Info("hello")
		entries := logs.All()
		if len(entries) != 1 {
			t.Fatalf("%s: want=1 entry got=%d", tc.key, len(entries))
		}
		got := entries[0].ContextMap()[tc.key]
		if got != "Component" {
			t.Fatalf("%s: want=Component got=%v", tc.key, got)
		}
	}
}

func TestWithDoesNotMutateParent(t *testing.T) {
	log, logs := observedLogger()
	scoped := log.With("service", "A")
	log.Info("plain")
	scoped.Info("scoped")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("want=2 entries got=%d", len(entries))
	}
	if _, ok := entries[0].ContextMap()["service"]; ok {
		t.Fatalf("parent logger picked up the child's field")
	}
	if entries[1].ContextMap()["service"] != "A" {
		t.Fatalf("scoped entry missing field: %v", entries[1].ContextMap())
	}
}
