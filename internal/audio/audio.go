package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Format describes the layout of a chunk's PCM payload.
type Format struct {
	Channels   int
	SampleRate int
	BitDepth   int
}

// Chunk is one discrete unit of captured audio. Data is little-endian signed PCM
// (8-bit audio is unsigned, as in WAV).
type Chunk struct {
	Data       []byte
	Format     Format
	CapturedAt time.Time
}

// BytesPerSample returns the width of one sample of one channel.
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// Duration reports how much audio the chunk holds.
func (c Chunk) Duration() time.Duration {
	frame := c.Format.BytesPerSample() * c.Format.Channels
	if frame <= 0 || c.Format.SampleRate <= 0 {
		return 0
	}
	frames := len(c.Data) / frame
	return time.Duration(frames) * time.Second / time.Duration(c.Format.SampleRate)
}

// Normalize converts the chunk into mono float32 samples in [-1, 1].
// Multi-channel input is down-mixed by averaging channels.
func Normalize(c Chunk) ([]float32, error) {
	width := c.Format.BytesPerSample()
	channels := c.Format.Channels
	if channels <= 0 {
		channels = 1
	}
	switch width {
	case 1, 2, 3, 4:
	default:
		return nil, fmt.Errorf("unsupported bit depth %d", c.Format.BitDepth)
	}
	frame := width * channels
	if len(c.Data)%frame != 0 {
		return nil, errors.New("pcm payload not aligned to frame size")
	}

	out := make([]float32, len(c.Data)/frame)
	for i := range out {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			off := i*frame + ch*width
			sum += decodeSample(c.Data[off:off+width], width)
		}
		out[i] = sum / float32(channels)
	}
	return out, nil
}

func decodeSample(b []byte, width int) float32 {
	switch width {
	case 1:
		return (float32(b[0]) - 128) / 128
	case 2:
		return float32(int16(binary.LittleEndian.Uint16(b))) / 32768
	case 3:
		v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
		return float32(v) / 8388608
	default:
		return float32(int32(binary.LittleEndian.Uint32(b))) / 2147483648
	}
}

// FloatToPCM16 converts float samples back to 16-bit integers, clipping out-of-range values.
func FloatToPCM16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int(v)
	}
	return out
}

// ResampleLinear resamples PCM32F from inRate to outRate using linear interpolation.
func ResampleLinear(samples []float32, inRate, outRate int) []float32 {
	if inRate <= 0 || outRate <= 0 || inRate == outRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(outRate) / float64(inRate)
	outLen := int(float64(len(samples)) * ratio)
	if outLen <= 1 {
		outLen = 1
	}
	out := make([]float32, outLen)
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) / ratio
		i0 := int(srcPos)
		if i0 >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(srcPos - float64(i0))
		out[i] = samples[i0] + (samples[i0+1]-samples[i0])*frac
	}
	return out
}
