package cardiac

import (
	"math"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/lifespan-research/wearkit/wearkit/series"
)

// Frequency bands in Hz, per the Task Force of the European Society
// of Cardiology conventions for short-term HRV.
const (
	vlfLow  = 0.003
	vlfHigh = 0.04
	lfHigh  = 0.15
	hfHigh  = 0.4
)

// resampleHz is the rate the irregular tachogram is interpolated to
// before spectral estimation.
const resampleHz = 4.0

// welchSegment is the preferred Welch segment length in samples.
const welchSegment = 256

// FrequencyDomain holds the spectral HRV features of one interval
// series. Powers are absolute (ms squared), normalized powers are
// percentages of LF+HF.
type FrequencyDomain struct {
	VLF        float64
	LF         float64
	HF         float64
	TotalPower float64
	LFHF       float64
	LFNorm     float64
	HFNorm     float64
	PeakVLF    float64
	PeakLF     float64
	PeakHF     float64
}

// FrequencyDomainOf computes Welch-periodogram spectral features of a
// cleaned beat-to-beat series: the tachogram is evenly resampled,
// split into mean-detrended Hann-windowed half-overlapping segments,
// and the averaged one-sided spectrum is integrated per band.
func FrequencyDomainOf(bbi []float64) FrequencyDomain {
	nan := math.NaN()
	empty := FrequencyDomain{
		VLF: nan, LF: nan, HF: nan, TotalPower: nan, LFHF: nan,
		LFNorm: nan, HFNorm: nan, PeakVLF: nan, PeakLF: nan, PeakHF: nan,
	}

	signal := resampleTachogram(bbi, resampleHz)
	if len(signal) < 8 {
		return empty
	}
	freqs, psd := welch(signal, resampleHz, welchSegment)

	vlf, peakVLF := bandPower(freqs, psd, vlfLow, vlfHigh)
	lf, peakLF := bandPower(freqs, psd, vlfHigh, lfHigh)
	hf, peakHF := bandPower(freqs, psd, lfHigh, hfHigh)
	total := vlf + lf + hf

	return FrequencyDomain{
		VLF:        vlf,
		LF:         lf,
		HF:         hf,
		TotalPower: total,
		LFHF:       lf / hf,
		LFNorm:     lf / (lf + hf) * 100,
		HFNorm:     hf / (lf + hf) * 100,
		PeakVLF:    peakVLF,
		PeakLF:     peakLF,
		PeakHF:     peakHF,
	}
}

// resampleTachogram linearly interpolates the interval series onto an
// even time grid. The time axis is the cumulative sum of the
// intervals themselves.
func resampleTachogram(bbi []float64, hz float64) []float64 {
	if len(bbi) < 2 {
		return nil
	}
	times := make([]float64, len(bbi))
	var elapsed float64
	for i, v := range bbi {
		elapsed += v / 1000
		times[i] = elapsed
	}

	step := 1 / hz
	n := int((times[len(times)-1] - times[0]) / step)
	out := make([]float64, 0, n)
	idx := 0
	for t := times[0]; t <= times[len(times)-1]; t += step {
		for idx < len(times)-1 && times[idx+1] < t {
			idx++
		}
		if idx == len(times)-1 {
			out = append(out, bbi[idx])
			continue
		}
		span := times[idx+1] - times[idx]
		frac := (t - times[idx]) / span
		out = append(out, bbi[idx]+(bbi[idx+1]-bbi[idx])*frac)
	}
	return out
}

// welch estimates the one-sided power spectral density by averaging
// modified periodograms of half-overlapping segments.
func welch(signal []float64, fs float64, nperseg int) (freqs, psd []float64) {
	if nperseg > len(signal) {
		nperseg = len(signal)
	}
	step := nperseg / 2
	if step == 0 {
		step = 1
	}

	window := make([]float64, nperseg)
	var windowPower float64
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(nperseg-1)))
		windowPower += window[i] * window[i]
	}

	fft := fourier.NewFFT(nperseg)
	bins := nperseg/2 + 1
	psd = make([]float64, bins)
	segment := make([]float64, nperseg)

	segments := 0
	for begin := 0; begin+nperseg <= len(signal); begin += step {
		copy(segment, signal[begin:begin+nperseg])
		var mean float64
		for _, v := range segment {
			mean += v
		}
		mean /= float64(nperseg)
		for i := range segment {
			segment[i] = (segment[i] - mean) * window[i]
		}

		coeffs := fft.Coefficients(nil, segment)
		for k, c := range coeffs {
			power := real(c)*real(c) + imag(c)*imag(c)
			scale := 1 / (fs * windowPower)
			if k != 0 && k != bins-1 {
				scale *= 2 // one-sided spectrum
			}
			psd[k] += power * scale
		}
		segments++
	}
	if segments > 0 {
		for k := range psd {
			psd[k] /= float64(segments)
		}
	}

	freqs = make([]float64, bins)
	for k := range freqs {
		freqs[k] = fs * float64(k) / float64(nperseg)
	}
	return freqs, psd
}

// bandPower integrates the spectrum over [low, high) by the trapezoid
// rule and reports the frequency of the band's spectral peak.
func bandPower(freqs, psd []float64, low, high float64) (power, peak float64) {
	peak = math.NaN()
	best := math.Inf(-1)
	for i := 1; i < len(freqs); i++ {
		if freqs[i] < low || freqs[i-1] >= high {
			continue
		}
		power += (psd[i] + psd[i-1]) / 2 * (freqs[i] - freqs[i-1])
		if psd[i] > best {
			best = psd[i]
			peak = freqs[i]
		}
	}
	return power, peak
}

// FrequencyDomainResult carries one user's spectral features, or the
// error that prevented computing them.
type FrequencyDomainResult struct {
	Features FrequencyDomain
	Err      error
}

// FrequencyDomainFeatures computes the spectral HRV features of each
// selected user over the window, after cleaning the interval series.
func FrequencyDomainFeatures(src Source, users any, start, end *time.Time, opts FilterOptions) (map[string]FrequencyDomainResult, error) {
	ids, err := series.ExpandUsers(src, users)
	if err != nil {
		return nil, err
	}
	out := make(map[string]FrequencyDomainResult, len(ids))
	for _, id := range ids {
		bbi, err := loadIntervals(src, id, start, end, opts)
		if err != nil {
			out[id] = FrequencyDomainResult{Err: err}
			continue
		}
		out[id] = FrequencyDomainResult{Features: FrequencyDomainOf(bbi)}
	}
	return out, nil
}
