package chat

import (
	"context"
	"testing"
)

func TestStaticResponder_FixedReply(t *testing.T) {
	r := NewStatic("always this line")

	reply, err := r.Respond(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if reply != "always this line" {
		t.Errorf("reply = %q, want %q", reply, "always this line")
	}
}

func TestStaticResponder_EmptyDefaultsToFallback(t *testing.T) {
	r := NewStatic("")

	reply, err := r.Respond(context.Background(), Request{UserText: "hi"})
	if err != nil {
		t.Fatalf("Respond() error: %v", err)
	}
	if reply != FallbackReply {
		t.Errorf("reply = %q, want FallbackReply %q", reply, FallbackReply)
	}
}
