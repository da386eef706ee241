package oscilloscope

import "math"

// hannWindow returns the periodic Hann window of the given size.
func hannWindow(size int) []float64 {
	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size)))
	}
	return window
}

// fft computes an in-place iterative radix-2 transform. len(samples) must
// be a power of two.
func fft(samples []complex128) {
	n := len(samples)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			samples[i], samples[j] = samples[j], samples[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		angle := -2 * math.Pi / float64(length)
		wl := complex(math.Cos(angle), math.Sin(angle))
		for start := 0; start < n; start += length {
			w := complex(1, 0)
			for k := start; k < start+length/2; k++ {
				even := samples[k]
				odd := samples[k+length/2] * w
				samples[k] = even + odd
				samples[k+length/2] = even - odd
				w *= wl
			}
		}
	}
}

// isPowerOfTwo reports whether n is a positive power of two.
func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
