// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package tokens implements the character-based token estimator shared by
// every budget computation in the agent control plane. It is deliberately
// not a real tokenizer — consistency within the assembler matters more
// than absolute accuracy against any particular model's vocabulary.
package tokens

import "encoding/json"

// charsPerToken is the approximation ratio used across the module: roughly
// 4 bytes of UTF-8 text per token.
const charsPerToken = 4

// messageOverhead is the constant per-message token cost added on top of
// content estimation (role markers, separators the real tokenizer would add).
const messageOverhead = 4

// Estimate approximates the token count of text as ceil(len(bytes)/4), 0 for
// an empty string.
func Estimate(text string) int {
	n := len(text)
	if n == 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}

// EstimateMessage estimates a message's token footprint: its content plus
// the constant message overhead.
func EstimateMessage(content string) int {
	return Estimate(content) + messageOverhead
}

// EstimateJSON estimates the token footprint of any JSON-serializable value,
// used for tool definitions. A marshal failure estimates as 0 rather than
// propagating an error — token estimation is advisory, not authoritative.
func EstimateJSON(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return Estimate(string(b))
}
