package planner

import "github.com/tiktoken-go/tokenizer"

// CountTokens returns the GPT-4-encoding token count for text, falling
// back to the 4-chars-per-token estimate when the codec is unavailable.
func CountTokens(text string) int {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return len(text) / 4
	}
	count, err := codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}
