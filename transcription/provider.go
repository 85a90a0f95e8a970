package transcription

import (
	"context"

	"github.com/cometik/assessd/provider"
)

// Provider is the interface transcription backends must implement.
type Provider interface {
	provider.Provider // embeds Name() and IsAvailable()

	// Transcribe sends audio for transcription and returns the result.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// NewRegistry creates a provider registry for transcription backends.
func NewRegistry() *provider.Registry[Provider] {
	return provider.NewRegistry[Provider]()
}
