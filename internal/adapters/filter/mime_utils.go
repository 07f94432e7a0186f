package filter

import (
	"bytes"
	"mime"
)

// decodeEncodedHeader decodes RFC 2047 encoded-words so a subject tag
// can be prepended to the readable form.
func decodeEncodedHeader(value string) (string, error) {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(value)
	if err != nil {
		return value, err
	}
	return decoded, nil
}

// bodyOffset returns the index of the first body byte in a raw message,
// or -1 when no header/body separator is present.
func bodyOffset(raw []byte) int {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i != -1 {
		return i + 4
	}
	if i := bytes.Index(raw, []byte("\n\n")); i != -1 {
		return i + 2
	}
	return -1
}
