// internal/context/engine.go
package context

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/certassist/pkg/llm"
)

// Engine keeps chat prompts inside the model's token budget.
type Engine struct {
	tokenizer *tiktoken.Tiktoken
	maxTokens int
	reserve   int
}

// New creates a context engine with the specified token budget.
// model selects the tokenizer (e.g. "gpt-4"); unknown models fall back to
// cl100k_base. maxTokens is the model's context window size; reserve is
// held back for the model's response.
func New(model string, maxTokens, reserve int) (*Engine, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Engine{
		tokenizer: enc,
		maxTokens: maxTokens,
		reserve:   reserve,
	}, nil
}

// countTokens returns the token count for a string.
func (e *Engine) countTokens(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

// Fit trims messages from the front until the remainder fits the input
// budget. The newest message is always kept, even if it alone exceeds the
// budget: dropping the turn being answered would be worse than an
// over-long request the backend can reject itself.
func (e *Engine) Fit(messages []llm.Message) []llm.Message {
	budget := e.maxTokens - e.reserve
	if len(messages) == 0 || budget <= 0 {
		return messages
	}

	total := 0
	counts := make([]int, len(messages))
	for i, m := range messages {
		counts[i] = e.countTokens(m.Content)
		total += counts[i]
	}

	start := 0
	for start < len(messages)-1 && total > budget {
		total -= counts[start]
		start++
	}
	return messages[start:]
}
