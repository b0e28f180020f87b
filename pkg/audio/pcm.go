// Package audio normalises client PCM to the format the speech transport
// expects.
//
// All audio is signed 16-bit little-endian PCM with interleaved channels.
// Clients often record at 44.1 or 48 kHz in stereo while transports want
// 16 kHz mono, so [ToMono] downmixes first and then resamples.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnaligned is returned when a buffer does not hold a whole number of
// sample frames.
var ErrUnaligned = errors.New("audio: pcm is not aligned to whole frames")

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns a human-readable form such as "48000Hz stereo".
func (f Format) String() string {
	switch f.Channels {
	case 1:
		return fmt.Sprintf("%dHz mono", f.SampleRate)
	case 2:
		return fmt.Sprintf("%dHz stereo", f.SampleRate)
	default:
		return fmt.Sprintf("%dHz %dch", f.SampleRate, f.Channels)
	}
}

// Valid reports whether f can be converted.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0
}

// ToMono converts pcm in format from to mono at dstRate. A buffer that is
// already in the target format is returned as is.
func ToMono(pcm []byte, from Format, dstRate int) ([]byte, error) {
	if !from.Valid() || dstRate <= 0 {
		return nil, fmt.Errorf("audio: convert %s to %dHz mono: invalid format", from, dstRate)
	}
	if len(pcm)%(2*from.Channels) != 0 {
		return nil, fmt.Errorf("audio: convert %d bytes of %s: %w", len(pcm), from, ErrUnaligned)
	}
	out := pcm
	if from.Channels > 1 {
		out = Downmix(out, from.Channels)
	}
	if from.SampleRate != dstRate {
		out = Resample(out, from.SampleRate, dstRate)
	}
	return out, nil
}

// Downmix averages the interleaved channels of every frame into one
// sample. Trailing bytes that do not form a whole frame are dropped.
func Downmix(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	frameBytes := 2 * channels
	frames := len(pcm) / frameBytes
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for c := range channels {
			off := i*frameBytes + c*2
			sum += int32(int16(binary.LittleEndian.Uint16(pcm[off:])))
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sum/int32(channels))))
	}
	return out
}

// Resample converts mono pcm from srcRate to dstRate with linear
// interpolation. Equal or invalid rates return pcm unchanged.
func Resample(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	n := len(pcm) / 2
	outN := int(int64(n) * int64(dstRate) / int64(srcRate))
	if outN == 0 {
		return nil
	}

	sample := func(i int) float64 {
		if i >= n {
			i = n - 1
		}
		return float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	out := make([]byte, outN*2)
	step := float64(srcRate) / float64(dstRate)
	for i := range outN {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)
		v := sample(idx)*(1-frac) + sample(idx+1)*frac
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
