package tracing

import "testing"

func TestSetup_DisabledWithoutKeys(t *testing.T) {
	t.Setenv("LANGFUSE_PUBLIC_KEY", "")
	t.Setenv("LANGFUSE_SECRET_KEY", "secret")

	h, flush, ok := Setup()
	if ok || h != nil || flush != nil {
		t.Fatalf("Setup() = (%v, %v, %v), want disabled", h, flush != nil, ok)
	}

	flushFn, enabled := Enable()
	if enabled {
		t.Fatal("Enable() reported enabled without keys")
	}
	flushFn()
}
