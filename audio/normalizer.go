// Package audio normalizes recorded answers into the canonical form the
// transcription engine expects: 16 kHz mono 16-bit PCM WAV. Normalization is
// deterministic for the native WAV path; other containers are decoded by an
// external Decoder first and then canonicalized through the same path.
package audio

import (
	"context"

	"github.com/cometik/assessd/errors"
	"github.com/cometik/assessd/logger"
)

// Normalizer converts raw uploaded audio into canonical WAV.
type Normalizer struct {
	cfg     Config
	decoder Decoder
	log     *logger.Logger
	maxSize int64
}

// NewNormalizer builds a Normalizer. A nil decoder restricts input to WAV.
func NewNormalizer(cfg Config, decoder Decoder, log *logger.Logger) *Normalizer {
	cfg.ApplyDefaults()
	return &Normalizer{
		cfg:     cfg,
		decoder: decoder,
		log:     log.WithComponent("audio"),
		maxSize: cfg.MaxBytesValue(),
	}
}

// Inspect runs the synchronous admission checks without decoding: payload
// size, emptiness and container sniffing. Callers use it to reject bad
// uploads before creating any durable record.
func (n *Normalizer) Inspect(raw []byte) error {
	if len(raw) == 0 {
		return errors.CorruptAudio(nil)
	}
	if int64(len(raw)) > n.maxSize {
		return errors.PayloadTooLarge(int64(len(raw)), n.maxSize)
	}
	format := Sniff(raw)
	if format == FormatUnknown {
		return errors.UnsupportedAudioFormat(string(format))
	}
	if format != FormatWAV && n.decoder == nil {
		return errors.UnsupportedAudioFormat(string(format))
	}
	return nil
}

// Normalize sniffs the container, decodes, downmixes to mono, resamples to
// the target rate and re-encodes as 16-bit PCM WAV. Identical input yields
// byte-identical output. The declared format is logged but never trusted.
func (n *Normalizer) Normalize(ctx context.Context, raw []byte, declaredFormat string) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.CorruptAudio(nil)
	}
	if int64(len(raw)) > n.maxSize {
		return nil, errors.PayloadTooLarge(int64(len(raw)), n.maxSize)
	}

	format := Sniff(raw)
	if format == FormatUnknown {
		n.log.Warn("unrecognized audio container", logger.Fields(
			"declared_format", declaredFormat,
		))
		return nil, errors.UnsupportedAudioFormat(declaredFormat)
	}
	if declaredFormat != "" && declaredFormat != string(format) {
		n.log.Debug("declared format disagrees with content", logger.Fields(
			"declared_format", declaredFormat,
			"detected_format", string(format),
		))
	}

	wavBytes := raw
	if format != FormatWAV {
		if n.decoder == nil {
			return nil, errors.UnsupportedAudioFormat(string(format))
		}
		decoded, err := n.decoder.Decode(ctx, raw, format, n.cfg.TargetSampleRate)
		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Cancelled("normalizing")
			}
			return nil, errors.CorruptAudio(err)
		}
		wavBytes = decoded
	}

	return normalizeWAV(wavBytes, n.cfg.TargetSampleRate)
}

// normalizeWAV is the deterministic core: decode, downmix, resample, encode.
func normalizeWAV(data []byte, targetRate int) ([]byte, error) {
	decoded, err := decodeWAV(data)
	if err != nil {
		return nil, errors.CorruptAudio(err)
	}
	mono := downmix(decoded)
	mono = resample(mono, decoded.sampleRate, targetRate)
	return encodeWAV(mono, targetRate), nil
}
