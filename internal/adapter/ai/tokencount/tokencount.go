// Package tokencount estimates prompt sizes and trims prompts to a token budget.
//
// Gemini does not publish a local tokenizer; cl100k_base from tiktoken-go is a
// close enough approximation for budgeting.
package tokencount

import (
	"log/slog"
	"sync"
	"unicode/utf8"

	tiktoken "github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const encodingName = "cl100k_base"

// Counter is safe for concurrent use. The encoding is loaded lazily on first use.
type Counter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewCounter creates a counter backed by the embedded BPE ranks, so no network is needed.
func NewCounter() *Counter { return &Counter{} }

func (c *Counter) encoding() *tiktoken.Tiktoken {
	c.once.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		enc, err := tiktoken.GetEncoding(encodingName)
		if err != nil {
			slog.Warn("tiktoken encoding unavailable; using character estimate", slog.Any("error", err))
			return
		}
		c.enc = enc
	})
	return c.enc
}

// Count returns the approximate number of tokens in text.
func (c *Counter) Count(text string) int {
	if enc := c.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	// ~4 characters per token
	return (utf8.RuneCountInString(text) + 3) / 4
}

// Truncate cuts text to at most maxTokens tokens. The second result reports whether anything was cut.
func (c *Counter) Truncate(text string, maxTokens int) (string, bool) {
	if maxTokens <= 0 {
		return text, false
	}
	enc := c.encoding()
	if enc == nil {
		maxRunes := maxTokens * 4
		if utf8.RuneCountInString(text) <= maxRunes {
			return text, false
		}
		return string([]rune(text)[:maxRunes]), true
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, false
	}
	out := enc.Decode(tokens[:maxTokens])
	// A cut in the middle of a multi-byte rune leaves a replacement char; drop it.
	for len(out) > 0 {
		r, size := utf8.DecodeLastRuneInString(out)
		if r != utf8.RuneError || size != 1 {
			break
		}
		out = out[:len(out)-size]
	}
	return out, true
}
