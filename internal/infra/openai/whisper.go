package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"voice-assistant/internal/application"
)

// WhisperClient transcribes WAV audio with the account key held in the
// credential store.
type WhisperClient struct {
	credentials application.CredentialStore
	httpClient  *http.Client
	baseURL     string
	language    string
}

func NewWhisperClient(credentials application.CredentialStore, language string) *WhisperClient {
	return NewWhisperClientWithURL(credentials, language, DefaultBaseURL)
}

func NewWhisperClientWithURL(credentials application.CredentialStore, language, baseURL string) *WhisperClient {
	return &WhisperClient{
		credentials: credentials,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		language:    language,
	}
}

func (c *WhisperClient) Transcribe(ctx context.Context, wav []byte) (string, error) {
	key, err := loadKey(c.credentials)
	if err != nil {
		return "", fmt.Errorf("loading api key: %w", err)
	}

	client := newClient(key, c.baseURL, c.httpClient)
	resp, err := client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    goopenai.Whisper1,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(wav),
		Language: c.language,
	})
	if err != nil {
		return "", fmt.Errorf("transcribing: %w", err)
	}

	return strings.TrimSpace(resp.Text), nil
}
