package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteChunkWAV stores the chunk's raw PCM as a WAV file using the chunk's own format.
func WriteChunkWAV(path string, c Chunk) error {
	width := c.Format.BytesPerSample()
	if width <= 0 || len(c.Data)%width != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}
	samples := make([]int, len(c.Data)/width)
	for i := range samples {
		b := c.Data[i*width : (i+1)*width]
		switch width {
		case 1:
			samples[i] = int(b[0])
		case 2:
			samples[i] = int(int16(binary.LittleEndian.Uint16(b)))
		case 3:
			samples[i] = int(int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16)
		default:
			samples[i] = int(int32(binary.LittleEndian.Uint32(b)))
		}
	}
	return writeWAV(path, samples, c.Format)
}

// WriteSamplesWAV stores mono float samples as a 16-bit WAV file.
func WriteSamplesWAV(w io.WriteSeeker, samples []float32, sampleRate int) error {
	return encode(w, FloatToPCM16(samples), Format{Channels: 1, SampleRate: sampleRate, BitDepth: 16})
}

func writeWAV(path string, samples []int, format Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create wav dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := encode(file, samples, format); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func encode(w io.WriteSeeker, samples []int, format Format) error {
	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		Data:           samples,
		SourceBitDepth: format.BitDepth,
	}
	enc := wav.NewEncoder(w, format.SampleRate, format.BitDepth, format.Channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
