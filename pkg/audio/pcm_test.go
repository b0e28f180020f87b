package audio

import (
	"encoding/binary"
	"errors"
	"testing"
)

func encode(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func decodeSamples(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

func TestDownmix(t *testing.T) {
	t.Parallel()

	got := decodeSamples(Downmix(encode(100, 300, -32768, -32768, 32767, 32767), 2))
	want := []int16{200, -32768, 32767}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDownmix_Mono(t *testing.T) {
	t.Parallel()

	in := encode(1, 2, 3)
	if got := Downmix(in, 1); &got[0] != &in[0] {
		t.Error("mono input should be returned unchanged")
	}
}

func TestResample(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       []int16
		src, dst int
		wantLen  int
	}{
		{"same rate", []int16{1, 2, 3, 4}, 16000, 16000, 4},
		{"downsample 3x", make([]int16, 48), 48000, 16000, 16},
		{"upsample 2x", make([]int16, 10), 8000, 16000, 20},
		{"zero rate", []int16{1, 2}, 0, 16000, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Resample(encode(tt.in...), tt.src, tt.dst)
			if len(got)/2 != tt.wantLen {
				t.Errorf("got %d samples, want %d", len(got)/2, tt.wantLen)
			}
		})
	}
}

func TestResample_Interpolates(t *testing.T) {
	t.Parallel()

	got := decodeSamples(Resample(encode(0, 100), 8000, 16000))
	want := []int16{0, 50, 100, 100}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestToMono(t *testing.T) {
	t.Parallel()

	// 4 stereo frames at 32 kHz become 2 mono samples at 16 kHz.
	in := encode(10, 30, 10, 30, 50, 70, 50, 70)
	got, err := ToMono(in, Format{SampleRate: 32000, Channels: 2}, 16000)
	if err != nil {
		t.Fatalf("ToMono: %v", err)
	}
	if s := decodeSamples(got); len(s) != 2 || s[0] != 20 || s[1] != 60 {
		t.Errorf("got %v, want [20 60]", s)
	}
}

func TestToMono_Errors(t *testing.T) {
	t.Parallel()

	if _, err := ToMono([]byte{1, 2, 3}, Format{SampleRate: 16000, Channels: 2}, 16000); !errors.Is(err, ErrUnaligned) {
		t.Errorf("unaligned err = %v, want ErrUnaligned", err)
	}
	if _, err := ToMono([]byte{1, 2}, Format{}, 16000); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestFormat_String(t *testing.T) {
	t.Parallel()

	if got := (Format{SampleRate: 48000, Channels: 2}).String(); got != "48000Hz stereo" {
		t.Errorf("String() = %q", got)
	}
}
