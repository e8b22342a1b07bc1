package dsp

import "github.com/klauspost/cpuid/v2"

// SupportsFlushToZero reports whether the running CPU exposes the SSE2
// flush-to-zero / denormals-are-zero control bits the audio thread
// should enable at startup. Go's runtime does not expose a way to toggle
// the FPU's FTZ/DAZ MXCSR bits directly, so this is advisory: callers on
// platforms without SSE2 fall back entirely on the software
// flushDenormal path already applied to every stored DSP state value.
func SupportsFlushToZero() bool {
	return cpuid.CPU.Supports(cpuid.SSE2)
}
