package kvutil

import "bytes"

// NextPrefix returns a prefix that is lexicographically larger than the input prefix
func NextPrefix(prefix []byte) []byte {
	buf := make([]byte, len(prefix))
	copy(buf, prefix)
	var i int
	for i = len(prefix) - 1; i >= 0; i-- {
		buf[i]++
		if buf[i] != 0 {
			break
		}
	}
	if i == -1 {
		buf = make([]byte, 0)
	}
	return buf
}

// Key joins key segments with '/'
func Key(segments ...string) []byte {
	var buf bytes.Buffer
	for i, s := range segments {
		if i > 0 {
			buf.WriteByte('/')
		}
		buf.WriteString(s)
	}
	return buf.Bytes()
}

// Prefix joins key segments with '/' and appends a trailing '/'
func Prefix(segments ...string) []byte {
	return append(Key(segments...), '/')
}
