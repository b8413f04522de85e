// Package wavio reads and writes the WAV data the bridge tooling exchanges:
// impulse responses embedded in instrument banks and offline renders.
package wavio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// DecodeMono decodes an in-memory WAV file and downmixes it to mono.
func DecodeMono(data []byte) ([]float32, int, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav data (%d bytes)", len(data))
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("invalid wav buffer")
	}
	if buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("invalid wav sample-rate: %d", buf.Format.SampleRate)
	}
	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	if frames == 0 {
		return nil, 0, fmt.Errorf("empty wav data")
	}
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for c := 0; c < ch; c++ {
			sum += buf.Data[i*ch+c]
		}
		out[i] = sum / float32(ch)
	}
	return out, buf.Format.SampleRate, nil
}

// Resample converts in from fromRate to toRate. Equal rates return in as is.
func Resample(in []float32, fromRate int, toRate int) ([]float32, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	in64 := make([]float64, len(in))
	for i, v := range in {
		in64[i] = float64(v)
	}
	out64 := r.Process(in64)
	out := make([]float32, len(out64))
	for i, v := range out64 {
		out[i] = float32(v)
	}
	return out, nil
}

// WriteInterleaved writes interleaved float samples as 16-bit PCM.
func WriteInterleaved(path string, samples []float32, sampleRate int, numChannels int) error {
	if err := checkLayout(samples, numChannels); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return encode(f, samples, sampleRate, numChannels)
}

// EncodeMono returns samples as an in-memory 16-bit PCM WAV file.
func EncodeMono(samples []float32, sampleRate int) ([]byte, error) {
	var out seekBuffer
	if err := encode(&out, samples, sampleRate, 1); err != nil {
		return nil, err
	}
	return out.buf, nil
}

func checkLayout(samples []float32, numChannels int) error {
	if numChannels < 1 {
		return fmt.Errorf("invalid channel count %d", numChannels)
	}
	if len(samples)%numChannels != 0 {
		return fmt.Errorf("sample count %d not a multiple of %d channels", len(samples), numChannels)
	}
	return nil
}

func encode(w io.WriteSeeker, samples []float32, sampleRate int, numChannels int) error {
	enc := wav.NewEncoder(w, sampleRate, 16, numChannels, 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: numChannels,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// seekBuffer is an in-memory io.WriteSeeker. The encoder seeks back to
// patch chunk sizes once the data is written.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.buf) {
		b.buf = append(b.buf, make([]byte, end-len(b.buf))...)
	}
	n := copy(b.buf[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(b.pos)
	case io.SeekEnd:
		base = int64(len(b.buf))
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	pos := base + offset
	if pos < 0 {
		return 0, fmt.Errorf("seek: negative position %d", pos)
	}
	b.pos = int(pos)
	return pos, nil
}

// Interleave merges planar channels into dst, which must hold
// len(channels)*len(channels[0]) samples.
func Interleave(dst []float32, channels ...[]float32) {
	n := len(channels)
	if n == 0 {
		return
	}
	for c, ch := range channels {
		for i, v := range ch {
			dst[i*n+c] = v
		}
	}
}
