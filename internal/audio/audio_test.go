package audio

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func pcm16(values ...int16) []byte {
	b := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func TestNormalizePCM16(t *testing.T) {
	c := Chunk{Data: pcm16(0, 16384, -32768), Format: Format{Channels: 1, SampleRate: 16000, BitDepth: 16}}
	got, err := Normalize(c)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := []float32{0, 0.5, -1}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Fatalf("sample %d: expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestNormalizeDownmixesStereo(t *testing.T) {
	c := Chunk{Data: pcm16(16384, -16384, 16384, 16384), Format: Format{Channels: 2, SampleRate: 16000, BitDepth: 16}}
	got, err := Normalize(c)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(got))
	}
	if got[0] != 0 || math.Abs(float64(got[1]-0.5)) > 1e-6 {
		t.Fatalf("unexpected downmix %v", got)
	}
}

func TestNormalizeRejectsMisalignedPayload(t *testing.T) {
	c := Chunk{Data: []byte{1, 2, 3}, Format: Format{Channels: 1, SampleRate: 16000, BitDepth: 16}}
	if _, err := Normalize(c); err == nil {
		t.Fatal("expected alignment error")
	}
}

func TestChunkDuration(t *testing.T) {
	c := Chunk{Data: make([]byte, 32000), Format: Format{Channels: 1, SampleRate: 16000, BitDepth: 16}}
	if d := c.Duration(); d != time.Second {
		t.Fatalf("expected 1s, got %s", d)
	}
}

func TestWriteChunkWAVKeepsFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug", "chunk.wav")
	c := Chunk{Data: pcm16(1, 2, 3, 4), Format: Format{Channels: 2, SampleRate: 44100, BitDepth: 16}}
	if err := WriteChunkWAV(path, c); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatal("expected valid wav")
	}
	if dec.SampleRate != 44100 || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Fatalf("unexpected header rate=%d chans=%d depth=%d", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
}

func TestResampleLinear(t *testing.T) {
	in := []float32{0, 1, 0, 1}
	out := ResampleLinear(in, 8000, 16000)
	if len(out) != 8 {
		t.Fatalf("expected 8 samples, got %d", len(out))
	}
	if out[1] != 0.5 {
		t.Fatalf("expected interpolated 0.5, got %f", out[1])
	}
}
