package protocol

import (
	"crypto/sha256"
	"crypto/subtle"
	"io"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
)

// pskInfo domain-separates the PSK key derivation.
const pskInfo = "rcp-psk-v1"

// PSKResponseSize is the length of a challenge response in bytes.
const PSKResponseSize = 32

// ComputePSKResponse derives a 32-byte key from the pre-shared key and
// the server's salt (HKDF-SHA256), then returns the keyed BLAKE3 hash of
// the challenge.  The result is deterministic for identical inputs.
func ComputePSKResponse(psk string, challenge, salt []byte) []byte {
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(psk), salt, []byte(pskInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		// hkdf only fails after 255*32 bytes of output.
		panic("protocol: hkdf: " + err.Error())
	}

	h, err := blake3.NewKeyed(key)
	if err != nil {
		panic("protocol: blake3: " + err.Error())
	}
	h.Write(challenge) //nolint:errcheck // hash writes never fail
	return h.Sum(make([]byte, 0, PSKResponseSize))
}

// VerifyPSKResponse reports whether response answers challenge for psk.
func VerifyPSKResponse(psk string, challenge, salt, response []byte) bool {
	want := ComputePSKResponse(psk, challenge, salt)
	return subtle.ConstantTimeCompare(want, response) == 1
}
