package provider

import "testing"

func TestApplyMinimaxTunablesM21(t *testing.T) {
	r := &Request{Model: "MINIMAX-M2.1-XL"}
	temp, topP, topK := 0.7, 0.8, 50
	r.Temperature, r.TopP, r.TopK = &temp, &topP, &topK
	r = ApplyMinimaxTunables(r)
	if *r.Temperature != 1.0 || *r.TopP != 0.95 || *r.TopK != 40 {
		t.Errorf("got temp=%v topP=%v topK=%v", *r.Temperature, *r.TopP, *r.TopK)
	}
}

func TestApplyMinimaxTunablesM2NonDot1(t *testing.T) {
	r := &Request{Model: "minimax-m2"}
	r = ApplyMinimaxTunables(r)
	if *r.TopK != 20 {
		t.Errorf("expected top_k=20 for plain m2, got %v", *r.TopK)
	}
}

func TestApplyMinimaxTunablesUnaffectedModel(t *testing.T) {
	r := &Request{Model: "gpt-4o"}
	orig := *r
	r = ApplyMinimaxTunables(r)
	if r.Temperature != orig.Temperature || r.TopP != orig.TopP || r.TopK != orig.TopK {
		t.Error("expected non-minimax model to pass through unchanged")
	}
}
