package audio

import "bytes"

// Format identifies an audio container detected from content.
type Format string

const (
	FormatWAV      Format = "wav"
	FormatOgg      Format = "ogg"
	FormatFLAC     Format = "flac"
	FormatMP3      Format = "mp3"
	FormatMatroska Format = "webm"
	FormatMP4      Format = "m4a"
	FormatUnknown  Format = "unknown"
)

// Sniff detects the audio container from magic bytes. The declared format
// from the client is never trusted; content decides.
func Sniff(data []byte) Format {
	if len(data) < 12 {
		return FormatUnknown
	}
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case bytes.HasPrefix(data, []byte("OggS")):
		return FormatOgg
	case bytes.HasPrefix(data, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(data, []byte("ID3")):
		return FormatMP3
	case data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// bare MPEG frame sync, no ID3 tag
		return FormatMP3
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return FormatMatroska
	case bytes.Equal(data[4:8], []byte("ftyp")):
		return FormatMP4
	}
	return FormatUnknown
}
