package session

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/backkem/bold/pkg/credentials"
	"github.com/backkem/bold/pkg/crypto"
	"github.com/backkem/bold/pkg/frame"
)

// Handshake authenticates the connection with cloud-issued material.
//
//  1. Send StartHandshake carrying the opaque handshake payload.
//  2. Receive nonce (13) || server challenge (8) in the clear.
//  3. Key a handshake cryptor with the handshake key and nonce, encrypt the
//     server challenge and append a fresh 8-byte client challenge. The result
//     is the 16-byte session key.
//  4. Send the session key encrypted once more by the handshake cryptor.
//  5. Decrypt the finished response with a session cryptor (session key,
//     same nonce). It must read result 0x00 followed by the client challenge.
//
// On any failure the connection is closed; a failed handshake is never
// retried on the same link.
func (c *Connection) Handshake(ctx context.Context, h credentials.Handshake) error {
	if err := h.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateConnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: handshake in state %s", ErrInvalidState, state)
	}
	c.state = StateHandshaking
	c.mu.Unlock()

	cryptor, err := c.handshake(ctx, h)
	if err != nil {
		c.shutdown(err)
		return err
	}

	// The link may have dropped after the last reply arrived.
	c.mu.Lock()
	if c.closed {
		cause := c.cause
		c.mu.Unlock()
		return cause
	}
	c.cryptor = cryptor
	c.state = StateAuthenticated
	c.mu.Unlock()

	if c.log != nil {
		c.log.Debugf("handshake with device %d complete", h.DeviceID)
	}
	return nil
}

// handshake runs the exchange and returns the session cryptor.
func (c *Connection) handshake(ctx context.Context, h credentials.Handshake) (*crypto.Cryptor, error) {
	resp, err := c.Call(ctx, frame.TypeStartHandshake, h.Payload, frame.TypeHandshakeResponse)
	if err != nil {
		return nil, err
	}
	if len(resp) != handshakeResponseSize {
		return nil, fmt.Errorf("%w: handshake response is %d bytes, want %d",
			ErrProtocolDesync, len(resp), handshakeResponseSize)
	}
	nonce := resp[:crypto.NonceSize]
	serverChallenge := resp[crypto.NonceSize:]

	hs, err := crypto.NewCryptor(h.Key, nonce)
	if err != nil {
		return nil, err
	}

	clientChallenge, err := crypto.ReadRandom(c.rand, challengeSize)
	if err != nil {
		return nil, err
	}

	sessionKey := deriveSessionKey(hs, serverChallenge, clientChallenge)

	finished, err := c.Call(ctx, frame.TypeHandshakeClientResponse, hs.Process(sessionKey), frame.TypeHandshakeFinishedResponse)
	if err != nil {
		return nil, err
	}
	if len(finished) != finishedResponseSize {
		return nil, fmt.Errorf("%w: finished response is %d bytes, want %d",
			ErrProtocolDesync, len(finished), finishedResponseSize)
	}

	cryptor, err := crypto.NewCryptor(sessionKey, nonce)
	if err != nil {
		return nil, err
	}
	if err := verifyFinished(cryptor.Process(finished), clientChallenge); err != nil {
		return nil, err
	}
	return cryptor, nil
}

// deriveSessionKey returns encrypt(serverChallenge) || clientChallenge.
// It advances hs by one block.
func deriveSessionKey(hs *crypto.Cryptor, serverChallenge, clientChallenge []byte) []byte {
	key := make([]byte, 0, crypto.KeySize)
	key = append(key, hs.Process(serverChallenge)...)
	return append(key, clientChallenge...)
}

// verifyFinished checks a decrypted finished response.
func verifyFinished(plain, clientChallenge []byte) error {
	if plain[0] != 0x00 {
		return fmt.Errorf("%w: device result 0x%02X", ErrHandshakeFailed, plain[0])
	}
	if subtle.ConstantTimeCompare(plain[1:], clientChallenge) != 1 {
		return fmt.Errorf("%w: client challenge echo mismatch", ErrHandshakeFailed)
	}
	return nil
}
