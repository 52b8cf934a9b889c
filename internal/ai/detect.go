package ai

import (
	"fmt"
	"strings"
)

// Supported provider identities.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

// DetectProvider classifies an API key into a provider identity by its
// structural prefix. OpenAI keys start with "sk-", Google keys with "AIza",
// Groq keys with "gsk_". An unrecognized prefix is an error; the user must
// then select the provider explicitly.
func DetectProvider(apiKey string) (string, error) {
	key := strings.TrimSpace(apiKey)

	switch {
	case key == "":
		return "", fmt.Errorf("api key is empty")
	case strings.HasPrefix(key, "gsk_"):
		return ProviderGroq, nil
	case strings.HasPrefix(key, "sk-"):
		return ProviderOpenAI, nil
	case strings.HasPrefix(key, "AIza"):
		return ProviderGemini, nil
	}

	return "", fmt.Errorf("cannot detect provider from api key format; set the provider explicitly")
}

// KnownProvider reports whether the name matches a supported provider.
func KnownProvider(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderOpenAI, ProviderGemini, ProviderGroq:
		return true
	}
	return false
}
