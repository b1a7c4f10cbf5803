package server

import (
	"crypto/rand"
	"encoding/hex"
)

// newSessionID returns a 64-character hex identifier (256 bits of
// crypto/rand entropy), well within the store's 128-character id cap.
func newSessionID() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
