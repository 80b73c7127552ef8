package engines

// Int16ToBytes packs signed 16-bit little-endian PCM samples into bytes, the
// wire shape the HTTP-based engine adapters upload. Grounded on the byte
// packing the teacher's pkg/audio/wav.go already performs for its WAV header.
func Int16ToBytes(pcm []int16) []byte {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// BytesToInt16 unpacks signed 16-bit little-endian PCM bytes into samples.
func BytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}
