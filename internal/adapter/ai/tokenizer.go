package ai

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	defaultEncoder *tiktoken.Tiktoken
	encoderOnce    sync.Once
	encoderErr     error
)

// getEncoder returns the shared tiktoken encoder, initializing it lazily.
// cl100k_base is the GPT-4 encoding and a reasonable approximation for
// other modern models.
func getEncoder() (*tiktoken.Tiktoken, error) {
	encoderOnce.Do(func() {
		defaultEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return defaultEncoder, encoderErr
}

// EstimateTokens returns an estimated token count for text. Used for
// per-chunk budget checks before a diff is sent anywhere.
func EstimateTokens(text string) int {
	enc, err := getEncoder()
	if err != nil {
		// Character-based estimate if tiktoken is unavailable.
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
