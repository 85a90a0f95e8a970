package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cometik/assessd/process"
)

// Decoder converts a non-WAV audio container into WAV bytes at the target
// rate. Implementations must not retain the input slice.
type Decoder interface {
	Decode(ctx context.Context, input []byte, format Format, targetRate int) ([]byte, error)
}

// FFmpegDecoder shells out to ffmpeg for formats the native path cannot read.
type FFmpegDecoder struct {
	BinPath string
}

// NewFFmpegDecoder returns a decoder using the given ffmpeg binary.
func NewFFmpegDecoder(binPath string) *FFmpegDecoder {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &FFmpegDecoder{BinPath: binPath}
}

// Decode writes the input to a temp file, runs
// `ffmpeg -y -i input -ac 1 -ar <rate> -f wav output` and returns the result.
// Cancellation tears the ffmpeg process down via process.Run.
func (d *FFmpegDecoder) Decode(ctx context.Context, input []byte, format Format, targetRate int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "assessd-decode-*")
	if err != nil {
		return nil, fmt.Errorf("decode temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "input."+string(format))
	out := filepath.Join(tmpDir, "output.wav")
	if err := os.WriteFile(in, input, 0o600); err != nil {
		return nil, fmt.Errorf("decode temp write: %w", err)
	}

	result, err := process.Run(ctx, process.Command{
		Binary: d.BinPath,
		Args: []string{
			"-y", "-i", in,
			"-ac", "1", "-ar", strconv.Itoa(targetRate),
			"-f", "wav",
			out,
		},
	})
	if err != nil {
		if result != nil {
			return nil, fmt.Errorf("ffmpeg: %w: %s", err, lastLine(string(result.Stderr)))
		}
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	wav, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("decode temp read: %w", err)
	}
	return wav, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
