package client

import (
	"net/url"
	"strings"
)

const hexDigits = "0123456789abcdef"

// EncodeURL escapes s per UTF-8 byte as lowercase %xx, reserved or not, so
// "é" becomes "%c3%a9" and the result is always 3*len(s) bytes long. The
// service expects the looked-up URL as one fully escaped path segment.
func EncodeURL(s string) string {
	var b strings.Builder
	b.Grow(3 * len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}

// IsValidURL reports whether s parses with both a scheme and a host.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}
