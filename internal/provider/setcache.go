package provider

// SetCache implements the two-breakpoint cache strategy used for OpenAI-
// compatible and OpenRouter-routed Anthropic/Gemini requests: the first and
// last messages are cache-marked; the second-to-last is explicitly
// un-marked once the conversation has grown to 3+ messages (matching
// SetCache's own test table exactly, e.g. "su" -> "[s[u", "sua" -> "[su[a").
func SetCache(r *Request) *Request {
	n := len(r.Messages)
	if n == 0 {
		return r
	}
	if n >= 3 {
		r.Messages[n-2].CacheBreakpoint = false
	}
	r.Messages[0].CacheBreakpoint = true
	r.Messages[n-1].CacheBreakpoint = true
	return r
}

// SetCacheBedrock inserts a single CachePoint after the first system block
// and appends one to the content of the last message, per the Bedrock Converse
// API cache-placement rule. The actual CachePointBlock construction happens
// in bedrock.go's request builder; this transformer only marks intent via
// Request.Extra so the builder knows which indices to instrument.
func SetCacheBedrock(r *Request) *Request {
	n := len(r.Messages)
	if n == 0 {
		return r
	}
	extra := r.extra()
	extra["bedrock_cache_system"] = true
	extra["bedrock_cache_last_message_index"] = n - 1
	return r
}
