package testsupport

// AudioPayload returns size bytes of a repeating pattern standing in for an
// encoded recording. A size <= 0 yields a single byte.
func AudioPayload(size int) []byte {
	if size <= 0 {
		size = 1
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(0x42 + i%7)
	}
	return buf
}
