package encode

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"scoreframe/internal/score"
	"scoreframe/internal/services"
)

const (
	audioSampleRate = 44100
	// rampSeconds fades each note in and out to avoid clicks at the
	// half-open interval boundaries.
	rampSeconds = 0.01
)

// WriteSineWAV synthesizes a mono 16-bit PCM preview track for the score:
// one sine per sounding note at its equal-tempered frequency. extraSeconds
// pads the track to the clip length so video and audio end together.
func WriteSineWAV(path string, sc *score.Score, extraSeconds float64) error {
	if sc == nil {
		return services.Wrap(services.ErrEncode, "encode", "synthesize audio", "no score to synthesize", nil)
	}
	total := sc.DurationSeconds() + extraSeconds
	if total < 1.0 {
		total = 1.0
	}
	sampleCount := int(math.Ceil(total * audioSampleRate))
	samples := make([]float64, sampleCount)

	for _, event := range sc.Events {
		start := sc.Seconds(event.StartTicks)
		end := sc.Seconds(event.EndTicks())
		freq := midiFrequency(event.MIDI)
		first := int(start * audioSampleRate)
		last := int(end * audioSampleRate)
		if last > sampleCount {
			last = sampleCount
		}
		for i := first; i < last; i++ {
			t := float64(i)/audioSampleRate - start
			samples[i] += ramp(t, end-start) * math.Sin(2*math.Pi*freq*t)
		}
	}

	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	gain := 0.6
	if peak > 1.0 {
		gain /= peak
	}

	pcm := make([]byte, sampleCount*2)
	for i, s := range samples {
		value := int16(math.Round(s * gain * math.MaxInt16))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(value))
	}

	if err := os.WriteFile(path, wavContainer(pcm), 0o644); err != nil {
		return services.Wrap(services.ErrEncode, "encode", "synthesize audio", fmt.Sprintf("write %q", path), err)
	}
	return nil
}

func midiFrequency(midi int) float64 {
	return 440.0 * math.Pow(2, float64(midi-69)/12.0)
}

func ramp(t, duration float64) float64 {
	attack := math.Min(t/rampSeconds, 1.0)
	release := math.Min((duration-t)/rampSeconds, 1.0)
	return math.Max(0, math.Min(attack, release))
}

// wavContainer wraps mono 16-bit PCM in a minimal RIFF/WAVE header.
func wavContainer(pcm []byte) []byte {
	out := make([]byte, 0, 44+len(pcm))
	u32 := func(v uint32) []byte {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], v)
		return b[:]
	}
	u16 := func(v uint16) []byte {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], v)
		return b[:]
	}

	out = append(out, "RIFF"...)
	out = append(out, u32(uint32(36+len(pcm)))...)
	out = append(out, "WAVE"...)
	out = append(out, "fmt "...)
	out = append(out, u32(16)...)
	out = append(out, u16(1)...) // PCM
	out = append(out, u16(1)...) // mono
	out = append(out, u32(audioSampleRate)...)
	out = append(out, u32(audioSampleRate*2)...) // byte rate
	out = append(out, u16(2)...)                 // block align
	out = append(out, u16(16)...)                // bits per sample
	out = append(out, "data"...)
	out = append(out, u32(uint32(len(pcm)))...)
	out = append(out, pcm...)
	return out
}
