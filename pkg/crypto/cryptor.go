// Package crypto implements the AES-128-CTR stream cryptor of the Bold BLE
// link protocol.
//
// Both peers run one instance per session and must call Process in exactly
// the order frames are exchanged:
//   - Key length: 128 bits (16 bytes)
//   - Nonce length: 13 bytes, issued by the device in HandshakeResponse
//   - IV: nonce || 0x00 || 0x00 || low byte of the running block counter
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// Cryptor constants.
const (
	// KeySize is the AES-128 key size in bytes.
	KeySize = 16

	// NonceSize is the size of the device-issued nonce in bytes.
	NonceSize = 13

	// blockSize is the AES block size (always 16 bytes).
	blockSize = 16
)

// Errors for cryptor operations.
var (
	ErrInvalidKeySize   = errors.New("crypto: invalid key size, must be 16 bytes")
	ErrInvalidNonceSize = errors.New("crypto: invalid nonce size, must be 13 bytes")
	ErrRandomFailed     = errors.New("crypto: failed to read random bytes")
)

// Cryptor is a stateful AES-128-CTR stream cipher.
//
// Every call to Process restarts CTR mode from an IV built from the nonce and
// the low byte of the block counter, then advances the counter by the number
// of blocks consumed. The counter byte wraps after 256 blocks; the device
// firmware shares that limit, so it is preserved as-is.
//
// A Cryptor is not safe for concurrent use. It is owned by one connection.
type Cryptor struct {
	block   cipher.Block
	nonce   [NonceSize]byte
	counter uint32
}

// NewCryptor creates a cryptor keyed with a 16-byte key and a 13-byte nonce.
// The block counter starts at 0.
func NewCryptor(key, nonce []byte) (*Cryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceSize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	c := &Cryptor{block: block}
	copy(c.nonce[:], nonce)
	return c, nil
}

// Process encrypts or decrypts src and returns a new slice of the same length.
// The block counter advances by ceil(len(src)/16).
func (c *Cryptor) Process(src []byte) []byte {
	dst := make([]byte, len(src))

	var iv [blockSize]byte
	copy(iv[:NonceSize], c.nonce[:])
	iv[blockSize-1] = byte(c.counter)

	if len(src) > 0 {
		stream := cipher.NewCTR(c.block, iv[:])
		stream.XORKeyStream(dst, src)
	}

	c.counter += uint32((len(src) + blockSize - 1) / blockSize)
	return dst
}

// Counter returns the number of blocks processed so far.
func (c *Cryptor) Counter() uint32 {
	return c.counter
}

// RandomBytes returns n bytes from the system CSPRNG.
func RandomBytes(n int) ([]byte, error) {
	return ReadRandom(rand.Reader, n)
}

// ReadRandom reads exactly n bytes from r.
// A nil reader falls back to crypto/rand.
func ReadRandom(r io.Reader, n int) ([]byte, error) {
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, ErrRandomFailed
	}
	return b, nil
}
