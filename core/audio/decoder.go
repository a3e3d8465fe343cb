package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"TuneScope/logger"
)

// DecodeRate is the sample rate every handle is resampled to before analysis.
const DecodeRate = 22050

// Decoder turns an audio file into a normalized Handle.
type Decoder interface {
	Decode(ctx context.Context, path string) (*Handle, error)
}

// FFmpegDecoder decodes arbitrary audio formats by piping them through ffmpeg.
type FFmpegDecoder struct {
	ffmpegPath string
}

// NewFFmpegDecoder creates a new FFmpegDecoder.
func NewFFmpegDecoder(ffmpegPath string) *FFmpegDecoder {
	return &FFmpegDecoder{ffmpegPath: ffmpegPath}
}

// Decode converts the file at path to a mono float PCM handle at DecodeRate.
// For WAV input it falls back to the native parser when ffmpeg is not
// available, so the watch command works on a bare host.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (*Handle, error) {
	channels, err := d.probeChannels(ctx, path)
	if err != nil {
		// Not fatal: the downmix still works, we just lose the source
		// channel count in the handle.
		logger.Warn("ffprobe failed, assuming stereo source", logger.String("path", path), logger.ErrorField(err))
		channels = 2
	}

	args := []string{
		"-v", "error",
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", DecodeRate),
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if strings.EqualFold(filepath.Ext(path), ".wav") {
			if h, werr := decodeWAVFile(path); werr == nil {
				return h, nil
			}
		}
		return nil, fmt.Errorf("ffmpeg decode failed for %s: %w\nFFmpeg Error: %s", path, err, stderr.String())
	}

	raw := out.Bytes()
	samples := make([]float64, 0, len(raw)/4)
	for i := 0; i+4 <= len(raw); i += 4 {
		bits := binary.LittleEndian.Uint32(raw[i : i+4])
		f := float64(math.Float32frombits(bits))
		if math.IsNaN(f) || math.IsInf(f, 0) {
			f = 0
		}
		samples = append(samples, f)
	}

	return &Handle{Samples: samples, SampleRate: DecodeRate, Channels: channels}, nil
}

// probeChannels reads the source channel count via ffprobe.
func (d *FFmpegDecoder) probeChannels(ctx context.Context, path string) (int, error) {
	ffprobePath := strings.Replace(d.ffmpegPath, "ffmpeg", "ffprobe", 1)

	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=channels",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", path, err, stderr.String())
	}

	var probeData struct {
		Streams []struct {
			Channels int `json:"channels"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}
	if len(probeData.Streams) == 0 {
		return 0, fmt.Errorf("no audio streams found in file")
	}
	return probeData.Streams[0].Channels, nil
}

func decodeWAVFile(path string) (*Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeWAV(f)
}
