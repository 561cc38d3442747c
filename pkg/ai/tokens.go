package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const tokenEncoding = "cl100k_base"

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

func getEncoder() *tiktoken.Tiktoken {
	encoderOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(tokenEncoding)
		if err != nil {
			// leave nil, TruncateTokens then falls back to a byte cap
			return
		}
		encoder = enc
	})
	return encoder
}

// TruncateTokens bounds text to at most maxTokens tokens before it is sent
// to an embedding model. Embedding backends silently truncate or reject
// over-length input; cutting here keeps the comparison text deterministic
// across backends. When the encoding cannot be loaded the text is capped at
// maxTokens*4 bytes instead.
func TruncateTokens(text string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return text
	}

	enc := getEncoder()
	if enc == nil {
		limit := maxTokens * 4
		if len(text) <= limit {
			return text
		}
		return text[:limit]
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}
