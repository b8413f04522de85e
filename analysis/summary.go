// Package analysis summarizes rendered audio: level, onset, decay and the
// dominant spectral peak.
package analysis

import (
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

const (
	fftSize     = 8192
	envFrame    = 256
	envHop      = 128
	onsetThresh = 1e-6
)

// Summary describes one mono signal.
type Summary struct {
	SampleRate  int
	Frames      int
	OnsetFrame  int // -1 when silent
	RMS         float64
	RMSDB       float64
	PeakDBFS    float64
	DominantHz  float64
	CentroidHz  float64
	DecayDBPerS float64 // NaN when not measurable
}

// Summarize measures samples. The spectrum is taken from a Hann window of
// up to fftSize frames starting at the onset.
func Summarize(samples []float32, sampleRate int) (Summary, error) {
	if sampleRate <= 0 {
		return Summary{}, fmt.Errorf("analysis: invalid sample rate %d", sampleRate)
	}
	s := Summary{
		SampleRate:  sampleRate,
		Frames:      len(samples),
		OnsetFrame:  -1,
		RMSDB:       linToDB(0),
		PeakDBFS:    linToDB(0),
		DecayDBPerS: math.NaN(),
	}
	x := make([]float64, len(samples))
	var peak float64
	for i, v := range samples {
		f := float64(v)
		if !isFinite(f) {
			return Summary{}, fmt.Errorf("analysis: non-finite sample at %d", i)
		}
		x[i] = f
		if a := math.Abs(f); a > peak {
			peak = a
		}
		if s.OnsetFrame < 0 && math.Abs(f) > onsetThresh {
			s.OnsetFrame = i
		}
	}
	if s.OnsetFrame < 0 {
		return s, nil
	}
	s.RMS = rms(x)
	s.RMSDB = linToDB(s.RMS)
	s.PeakDBFS = linToDB(peak)

	dominant, centroid, err := spectrumPeaks(x[s.OnsetFrame:], sampleRate)
	if err != nil {
		return Summary{}, err
	}
	s.DominantHz = dominant
	s.CentroidHz = centroid

	env := rmsEnvelope(x[s.OnsetFrame:], envFrame, envHop)
	s.DecayDBPerS = decaySlopeDBPerS(env, float64(envHop)/float64(sampleRate))
	return s, nil
}

func spectrumPeaks(x []float64, sampleRate int) (dominant, centroid float64, err error) {
	plan, err := algofft.NewPlanReal64(fftSize)
	if err != nil {
		return 0, 0, fmt.Errorf("analysis: fft plan: %w", err)
	}
	buf := make([]float64, fftSize)
	n := min(len(x), fftSize)
	span := float64(max(n-1, 1))
	for i := 0; i < n; i++ {
		buf[i] = x[i] * (0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/span))
	}
	spec := make([]complex128, fftSize/2+1)
	plan.Forward(spec, buf)

	binHz := float64(sampleRate) / float64(fftSize)
	var best, weighted, total float64
	bestBin := 0
	for k := 1; k < fftSize/2; k++ {
		mag := cmplx.Abs(spec[k])
		if mag > best {
			best = mag
			bestBin = k
		}
		weighted += float64(k) * binHz * mag
		total += mag
	}
	if total == 0 {
		return 0, 0, nil
	}
	return refinePeak(spec, bestBin) * binHz, weighted / total, nil
}

// refinePeak interpolates the peak bin with a parabola through the
// log magnitudes of its neighbours.
func refinePeak(spec []complex128, k int) float64 {
	if k <= 0 || k >= len(spec)-1 {
		return float64(k)
	}
	a := linToDB(cmplx.Abs(spec[k-1]))
	b := linToDB(cmplx.Abs(spec[k]))
	c := linToDB(cmplx.Abs(spec[k+1]))
	den := a - 2*b + c
	if den == 0 {
		return float64(k)
	}
	return float64(k) + 0.5*(a-c)/den
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	n := 1 + (len(x)-frame)/hop
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i * hop
		out[i] = rms(x[start : start+frame])
	}
	return out
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}

// decaySlopeDBPerS fits a line to the envelope from its peak down to 60 dB
// below it.
func decaySlopeDBPerS(env []float64, hopSec float64) float64 {
	if len(env) < 8 || hopSec <= 0 {
		return math.NaN()
	}
	peak := -math.MaxFloat64
	peakIdx := 0
	for i, v := range env {
		if db := linToDB(v); db > peak {
			peak = db
			peakIdx = i
		}
	}
	start := peakIdx + 1
	if start >= len(env)-4 {
		return math.NaN()
	}
	end := len(env)
	for i := start; i < len(env); i++ {
		if linToDB(env[i]) < peak-60.0 {
			end = i
			break
		}
	}
	if end-start < 6 {
		return math.NaN()
	}

	var sx, sy, sxx, sxy float64
	n := float64(end - start)
	for i := start; i < end; i++ {
		x := float64(i-start) * hopSec
		y := linToDB(env[i])
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if math.Abs(den) < 1e-12 {
		return math.NaN()
	}
	return (n*sxy - sx*sy) / den
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
