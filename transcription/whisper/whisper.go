// Package whisper implements the transcription provider backed by a
// faster-whisper HTTP sidecar.
package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/cometik/assessd/httpclient"
	"github.com/cometik/assessd/provider"
	"github.com/cometik/assessd/transcription"
)

// ProviderName is the registered name for the Whisper provider.
const ProviderName = "whisper"

const (
	defaultWhisperURL     = "http://localhost:8387"
	defaultWhisperModel   = "base"
	defaultWhisperTimeout = 120 * time.Second
)

// Config holds configuration for the Whisper transcription provider.
type Config struct {
	URL     string        `json:"url" yaml:"url"`
	Model   string        `json:"model" yaml:"model"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// Provider implements transcription.Provider using a faster-whisper HTTP sidecar.
type Provider struct {
	cfg    Config
	client *httpclient.Client
}

// NewProvider creates a new Whisper transcription provider. The underlying
// client fails fast through a circuit breaker when the sidecar is down;
// attempt-level retry stays with the orchestrator.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.URL == "" {
		cfg.URL = defaultWhisperURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultWhisperModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultWhisperTimeout
	}

	client, err := httpclient.New(httpclient.Config{
		BaseURL:        cfg.URL,
		Timeout:        cfg.Timeout,
		CircuitBreaker: httpclient.DefaultCircuitBreakerConfig(ProviderName),
	})
	if err != nil {
		return nil, fmt.Errorf("whisper client: %w", err)
	}

	return &Provider{cfg: cfg, client: client}, nil
}

// Factory returns a provider.Factory that creates Whisper Provider
// instances from a generic config map.
func Factory() provider.Factory[transcription.Provider] {
	return func(cfg map[string]any) (transcription.Provider, error) {
		wc := Config{}
		if v, ok := cfg["url"].(string); ok {
			wc.URL = v
		}
		if v, ok := cfg["model"].(string); ok {
			wc.Model = v
		}
		if v, ok := cfg["timeout"].(time.Duration); ok {
			wc.Timeout = v
		}
		return NewProvider(wc)
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks if the Whisper sidecar is reachable.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	resp, err := p.client.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		Path:   "/health",
	})
	return err == nil && resp.IsSuccess()
}

// Transcribe uploads the audio to the Whisper sidecar and returns the
// transcript with a confidence derived from segment log-probabilities.
func (p *Provider) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Result, error) {
	fields := map[string]string{"model": p.cfg.Model}
	if req.Locale != "" {
		fields["language"] = req.Locale
	}

	resp, err := p.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/transcribe",
		Body: &httpclient.MultipartBody{
			Fields: fields,
			Files: []httpclient.FileField{{
				FieldName:   "audio",
				FileName:    "audio.wav",
				ContentType: "audio/wav",
				Data:        req.Audio,
			}},
		},
	})
	if err != nil {
		werr := fmt.Errorf("whisper request: %w", err)
		if status := httpclient.StatusCodeOf(err); status >= 400 && !httpclient.IsRetryable(err) {
			// The sidecar rejected the request itself; retrying the
			// same bytes cannot succeed.
			return nil, transcription.Permanent(werr)
		}
		return nil, werr
	}

	var result whisperResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("decode whisper response: %w", err)
	}

	return toResult(&result), nil
}

// --- internal Whisper API response types ---

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
	Language string           `json:"language"`
}

type whisperSegment struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	AvgLogProb float64 `json:"avg_logprob"`
}

func toResult(resp *whisperResponse) *transcription.Result {
	var duration float64
	if len(resp.Segments) > 0 {
		duration = resp.Segments[len(resp.Segments)-1].End
	}

	return &transcription.Result{
		Text:       resp.Text,
		Confidence: segmentConfidence(resp.Segments),
		Provider:   ProviderName,
		Language:   resp.Language,
		Duration:   duration,
	}
}

// segmentConfidence maps the mean segment log-probability into [0,1].
// Without segments the engine gave no quality signal; report full
// confidence rather than a fabricated low one.
func segmentConfidence(segments []whisperSegment) float64 {
	if len(segments) == 0 {
		return 1.0
	}
	var sum float64
	for _, s := range segments {
		sum += s.AvgLogProb
	}
	conf := math.Exp(sum / float64(len(segments)))
	if conf > 1.0 {
		conf = 1.0
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}
