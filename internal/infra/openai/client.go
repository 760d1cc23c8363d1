package openai

import (
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"voice-assistant/internal/application"
	"voice-assistant/internal/domain"
)

const DefaultBaseURL = "https://api.openai.com/v1"

func newClient(apiKey, baseURL string, httpClient *http.Client) *goopenai.Client {
	config := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if httpClient != nil {
		config.HTTPClient = httpClient
	}
	return goopenai.NewClientWithConfig(config)
}

func loadKey(store application.CredentialStore) (string, error) {
	key, err := store.Load()
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", domain.ErrMissingCredential
	}
	return key, nil
}
