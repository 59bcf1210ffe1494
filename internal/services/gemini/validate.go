package gemini

import (
	"context"
	"errors"

	"storyforge/internal/services"
)

// ValidateKey checks the configured API key with a minimal generation
// request. Keys with non-ASCII characters are rejected before any network
// traffic because they cannot travel in a request header.
func ValidateKey(ctx context.Context, cfg Config, opts ...Option) error {
	if cfg.APIKey == "" {
		return services.Wrap(services.ErrInvalidCredential, "credentials", "validate", "api key is empty", nil)
	}
	if !isASCII(cfg.APIKey) {
		return services.Wrap(services.ErrInvalidCredential, "credentials", "validate", "api key contains non-ascii characters", nil)
	}
	client := NewTextClient(NewClient(cfg, opts...))
	if _, err := client.Generate(ctx, "test", GenerateOptions{}); err != nil {
		classified := services.Classify(err)
		if errors.Is(classified, services.ErrInvalidCredential) {
			return classified
		}
		return services.Wrap(nil, "credentials", "validate", "key check request failed", err)
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}
