package dispatch

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// validateAnthropicKey makes a minimal metered call to confirm the key
// works before any repository mutation happens. The key is only held in
// memory for the duration of the request.
func validateAnthropicKey(ctx context.Context, apiKey string, opts ...option.RequestOption) error {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := anthropic.NewClient(opts...)
	_, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaude3_5HaikuLatest,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic API key validation failed: %w", err)
	}
	return nil
}
