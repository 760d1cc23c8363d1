package openai

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"voice-assistant/internal/application"
)

// SpeechSampleRate is the rate of the raw PCM returned by the speech endpoint.
const SpeechSampleRate = 24000

const (
	DefaultSpeechModel = string(goopenai.TTSModel1)
	DefaultVoice       = string(goopenai.VoiceAlloy)
)

// SpeechClient synthesizes 16-bit mono PCM.
type SpeechClient struct {
	credentials application.CredentialStore
	httpClient  *http.Client
	baseURL     string
	model       string
	voice       string
	speed       float64
}

func NewSpeechClient(credentials application.CredentialStore, model, voice string, speed float64) *SpeechClient {
	return NewSpeechClientWithURL(credentials, model, voice, speed, DefaultBaseURL)
}

func NewSpeechClientWithURL(credentials application.CredentialStore, model, voice string, speed float64, baseURL string) *SpeechClient {
	if model == "" {
		model = DefaultSpeechModel
	}
	if voice == "" {
		voice = DefaultVoice
	}
	if speed == 0 {
		speed = 1.0
	}
	return &SpeechClient{
		credentials: credentials,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		model:       model,
		voice:       voice,
		speed:       speed,
	}
}

func (c *SpeechClient) SampleRate() int {
	return SpeechSampleRate
}

func (c *SpeechClient) Synthesize(ctx context.Context, text string) ([]int16, error) {
	key, err := loadKey(c.credentials)
	if err != nil {
		return nil, fmt.Errorf("loading api key: %w", err)
	}

	client := newClient(key, c.baseURL, c.httpClient)
	resp, err := client.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(c.model),
		Input:          text,
		Voice:          goopenai.SpeechVoice(c.voice),
		ResponseFormat: goopenai.SpeechResponseFormatPcm,
		Speed:          c.speed,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesizing speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("reading speech audio: %w", err)
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples, nil
}
