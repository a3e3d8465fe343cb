package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// DecodeWAV parses a RIFF/WAVE stream into a Handle. It understands 16-bit
// and 32-bit integer PCM plus 32-bit float PCM, and downmixes to mono. The
// samples keep their original rate; the analysis stages do not require
// DecodeRate, only a correct SampleRate field.
func DecodeWAV(r io.Reader) (*Handle, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var (
		audioFormat   uint16
		channels      int
		sampleRate    int
		bitsPerSample int
		data          []byte
	)

	for {
		var chunkHeader [8]byte
		if _, err := io.ReadFull(r, chunkHeader[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("failed to read chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			fmtChunk := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, fmtChunk); err != nil {
				return nil, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			if len(fmtChunk) < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", len(fmtChunk))
			}
			audioFormat = binary.LittleEndian.Uint16(fmtChunk[0:2])
			channels = int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(fmtChunk[14:16]))
		case "data":
			data = make([]byte, chunkSize)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("failed to read data chunk: %w", err)
			}
		default:
			// Skip unknown chunks (LIST, fact, ...). Chunks are word-aligned.
			skip := int64(chunkSize)
			if skip%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("failed to skip %q chunk: %w", chunkID, err)
			}
		}

		if data != nil && sampleRate != 0 {
			break
		}
	}

	if sampleRate == 0 || channels == 0 {
		return nil, fmt.Errorf("missing fmt chunk")
	}
	if data == nil {
		return nil, fmt.Errorf("missing data chunk")
	}

	bytesPerSample := bitsPerSample / 8
	if bytesPerSample == 0 {
		return nil, fmt.Errorf("invalid bits per sample: %d", bitsPerSample)
	}
	frameSize := bytesPerSample * channels
	frames := len(data) / frameSize

	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			off := i*frameSize + c*bytesPerSample
			var v float64
			switch {
			case audioFormat == 1 && bitsPerSample == 16:
				v = float64(int16(binary.LittleEndian.Uint16(data[off:off+2]))) / 32768.0
			case audioFormat == 1 && bitsPerSample == 32:
				v = float64(int32(binary.LittleEndian.Uint32(data[off:off+4]))) / 2147483648.0
			case audioFormat == 3 && bitsPerSample == 32:
				v = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4])))
			default:
				return nil, fmt.Errorf("unsupported WAV encoding: format %d, %d bits", audioFormat, bitsPerSample)
			}
			sum += v
		}
		samples[i] = sum / float64(channels)
	}

	return &Handle{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}
