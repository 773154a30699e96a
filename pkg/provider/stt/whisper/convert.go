package whisper

// pcmToFloat32 converts little-endian 16-bit PCM into the normalised
// float32 samples the whisper bindings expect. A trailing odd byte is
// dropped.
func pcmToFloat32(pcm []byte) []float32 {
	out := make([]float32, 0, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(pcm[i]) | int16(pcm[i+1])<<8
		out = append(out, float32(s)/32768)
	}
	return out
}
