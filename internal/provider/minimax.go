package provider

import "strings"

// ApplyMinimaxTunables forces the sampling parameters Minimax's m2 family
// requires for stable tool-calling, matching model names case-insensitively
// by substring. "*m2.1*" gets top_k=40; other "*m2*" models get top_k=20.
// Non-Minimax models pass through unchanged.
func ApplyMinimaxTunables(r *Request) *Request {
	lower := strings.ToLower(r.Model)
	if !strings.Contains(lower, "m2") {
		return r
	}
	temp := 1.0
	topP := 0.95
	topK := 20
	if strings.Contains(lower, "m2.1") {
		topK = 40
	}
	r.Temperature = &temp
	r.TopP = &topP
	r.TopK = &topK
	return r
}
