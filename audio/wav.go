package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	wavFormatPCM       = 1
	wavFormatIEEEFloat = 3
)

// pcmAudio is decoded audio held as normalized float64 samples per channel
// frame, interleaved.
type pcmAudio struct {
	sampleRate int
	channels   int
	samples    []float64
}

// decodeWAV parses a RIFF/WAVE container into normalized samples. Supports
// PCM 8/16/24/32-bit and IEEE float 32-bit, any channel count and rate.
func decodeWAV(data []byte) (*pcmAudio, error) {
	if len(data) < 44 {
		return nil, fmt.Errorf("truncated RIFF header: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE container")
	}

	var (
		format        uint16
		channels      int
		sampleRate    int
		bitsPerSample int
		haveFmt       bool
		pcmData       []byte
	)

	// Walk chunks. Chunk sizes are padded to even boundaries.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body+size > len(data) {
			return nil, fmt.Errorf("chunk %q overruns container", id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too small: %d bytes", size)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true
		case "data":
			pcmData = data[body : body+size]
		}
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if pcmData == nil || len(pcmData) == 0 {
		return nil, fmt.Errorf("missing or empty data chunk")
	}
	if channels < 1 || channels > 16 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	if sampleRate < 8000 || sampleRate > 192000 {
		return nil, fmt.Errorf("unsupported sample rate %d", sampleRate)
	}

	samples, err := decodeSamples(pcmData, format, bitsPerSample)
	if err != nil {
		return nil, err
	}
	// Drop a trailing partial frame instead of failing.
	if rem := len(samples) % channels; rem != 0 {
		samples = samples[:len(samples)-rem]
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("no complete audio frames")
	}

	return &pcmAudio{sampleRate: sampleRate, channels: channels, samples: samples}, nil
}

func decodeSamples(pcm []byte, format uint16, bits int) ([]float64, error) {
	switch {
	case format == wavFormatPCM && bits == 16:
		out := make([]float64, len(pcm)/2)
		for i := range out {
			v := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
			out[i] = float64(v) / 32768.0
		}
		return out, nil
	case format == wavFormatPCM && bits == 8:
		// 8-bit WAV is unsigned, centered on 128.
		out := make([]float64, len(pcm))
		for i, b := range pcm {
			out[i] = (float64(b) - 128.0) / 128.0
		}
		return out, nil
	case format == wavFormatPCM && bits == 24:
		out := make([]float64, len(pcm)/3)
		for i := range out {
			b := pcm[i*3 : i*3+3]
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF)
			}
			out[i] = float64(v) / 8388608.0
		}
		return out, nil
	case format == wavFormatPCM && bits == 32:
		out := make([]float64, len(pcm)/4)
		for i := range out {
			v := int32(binary.LittleEndian.Uint32(pcm[i*4 : i*4+4]))
			out[i] = float64(v) / 2147483648.0
		}
		return out, nil
	case format == wavFormatIEEEFloat && bits == 32:
		out := make([]float64, len(pcm)/4)
		for i := range out {
			bits32 := binary.LittleEndian.Uint32(pcm[i*4 : i*4+4])
			out[i] = float64(math.Float32frombits(bits32))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported sample encoding: format=%d bits=%d", format, bits)
	}
}

// downmix averages interleaved channels into mono.
func downmix(in *pcmAudio) []float64 {
	if in.channels == 1 {
		return in.samples
	}
	frames := len(in.samples) / in.channels
	out := make([]float64, frames)
	for f := 0; f < frames; f++ {
		var sum float64
		base := f * in.channels
		for c := 0; c < in.channels; c++ {
			sum += in.samples[base+c]
		}
		out[f] = sum / float64(in.channels)
	}
	return out
}

// resample converts mono samples between rates by linear interpolation.
// Linear is deterministic and adequate for speech destined for an STT engine.
func resample(in []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || len(in) == 0 {
		return in
	}
	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(in)) / ratio)
	if outLen < 1 {
		outLen = 1
	}
	out := make([]float64, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = in[idx]*(1-frac) + in[idx+1]*frac
	}
	return out
}

// encodeWAV writes mono samples as a canonical 16-bit PCM WAV file.
func encodeWAV(samples []float64, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))

	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(math.Round(s * 32767.0))
		binary.LittleEndian.PutUint16(buf[44+i*2:46+i*2], uint16(v))
	}
	return buf
}
