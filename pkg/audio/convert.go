package audio

// DownmixToDetector converts one 48kHz stereo transport frame into a 16kHz
// mono detector frame: stereo pairs are averaged, then the mono stream is
// decimated by keeping every third sample. No anti-alias filtering is applied;
// speech energy below 8kHz survives well enough for keyword spotting and STT.
func DownmixToDetector(frame Frame) Frame {
	pcm := frame.Data
	if frame.Channels == 2 {
		pcm = StereoToMono(pcm)
	}
	if frame.SampleRate == VoiceSampleRate {
		pcm = DecimateMono16(pcm, 3)
	}
	return Frame{
		Data:       pcm,
		SampleRate: DetectorSampleRate,
		Channels:   1,
		Timestamp:  frame.Timestamp,
	}
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
// Uses int32 arithmetic to prevent overflow and clamps to int16 range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		lSample := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		rSample := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (lSample + rSample) / 2

		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
// Input must be little-endian int16 PCM (2 bytes per sample).
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		j := i * 2
		out[j] = lo
		out[j+1] = hi
		out[j+2] = lo
		out[j+3] = hi
	}
	return out
}

// DecimateMono16 reduces the sample rate of 16-bit mono PCM by the integer
// factor, keeping every factor-th sample. factor <= 1 returns the input
// unchanged.
func DecimateMono16(pcm []byte, factor int) []byte {
	if factor <= 1 || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := (srcSamples + factor - 1) / factor
	out := make([]byte, dstSamples*2)
	for i := range dstSamples {
		out[i*2] = pcm[i*factor*2]
		out[i*2+1] = pcm[i*factor*2+1]
	}
	return out
}

// Int16s decodes little-endian 16-bit PCM bytes into samples.
func Int16s(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
	}
	return out
}

// Level returns the mean absolute amplitude of 16-bit mono PCM. Empty input
// yields 0. The result is the silence-endpointing metric for captured frames.
func Level(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum int64
	for i := range samples {
		s := int64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		if s < 0 {
			s = -s
		}
		sum += s
	}
	return float64(sum) / float64(samples)
}
