package prompt

import (
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/wilhg/toolspec/pkg/logging"
)

// TokenEstimator estimates token usage of text content.
type TokenEstimator func(text string) int

// RuneEstimator counts runes. It is the estimate used when no tokenizer is available.
func RuneEstimator(text string) int { return len([]rune(text)) }

// NewTikTokenEstimator returns a TokenEstimator backed by tiktoken-go for the given model.
// If the model is unknown, EncodingForModel returns an error.
func NewTikTokenEstimator(model string) (TokenEstimator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, err
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}

// LazyEstimator loads the model's encoding on first use and falls back to
// RuneEstimator if it cannot (unknown model, BPE ranks not downloadable).
func LazyEstimator(model string) TokenEstimator {
	var (
		once sync.Once
		est  TokenEstimator
	)
	return func(text string) int {
		once.Do(func() {
			e, err := NewTikTokenEstimator(model)
			if err != nil {
				logging.Debug("prompt", "tiktoken unavailable for %s, counting runes: %v", model, err)
				e = RuneEstimator
			}
			est = e
		})
		return est(text)
	}
}
