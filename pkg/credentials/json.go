package credentials

import (
	"encoding/json"
	"fmt"
	"time"
)

// apiHandshake is the cloud API's JSON shape for a handshake.
// []byte fields carry standard base64 on the wire.
type apiHandshake struct {
	DeviceID     uint64    `json:"deviceId"`
	Expiration   time.Time `json:"expiration"`
	HandshakeKey []byte    `json:"handshakeKey"`
	Payload      []byte    `json:"payload"`
}

// apiCommand is the cloud API's JSON shape for a command.
type apiCommand struct {
	DeviceID    uint64      `json:"deviceId"`
	CommandType CommandType `json:"commandType"`
	Expiration  time.Time   `json:"expiration"`
	Payload     []byte      `json:"payload"`
}

// ParseHandshakes decodes a JSON array of handshakes and validates each entry.
func ParseHandshakes(data []byte) ([]Handshake, error) {
	var raw []apiHandshake
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	out := make([]Handshake, 0, len(raw))
	for i, r := range raw {
		h := Handshake{
			DeviceID:  r.DeviceID,
			Key:       r.HandshakeKey,
			Payload:   r.Payload,
			ExpiresAt: r.Expiration,
		}
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("handshake %d (device %d): %w", i, r.DeviceID, err)
		}
		out = append(out, h)
	}
	return out, nil
}

// ParseCommands decodes a JSON array of commands and validates each entry.
func ParseCommands(data []byte) ([]Command, error) {
	var raw []apiCommand
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	out := make([]Command, 0, len(raw))
	for i, r := range raw {
		c := Command{
			DeviceID:  r.DeviceID,
			Type:      r.CommandType,
			Payload:   r.Payload,
			ExpiresAt: r.Expiration,
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("command %d (device %d): %w", i, r.DeviceID, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Material is an activation pair for one device.
type Material struct {
	Handshake Handshake
	Command   Command
}

// materialJSON is the stored form of Material, reusing the API shapes.
type materialJSON struct {
	Handshake apiHandshake `json:"handshake"`
	Command   apiCommand   `json:"command"`
}

// MarshalJSON encodes the material in the cloud API's field layout.
func (m Material) MarshalJSON() ([]byte, error) {
	return json.Marshal(materialJSON{
		Handshake: apiHandshake{
			DeviceID:     m.Handshake.DeviceID,
			Expiration:   m.Handshake.ExpiresAt,
			HandshakeKey: m.Handshake.Key,
			Payload:      m.Handshake.Payload,
		},
		Command: apiCommand{
			DeviceID:    m.Command.DeviceID,
			CommandType: m.Command.Type,
			Expiration:  m.Command.ExpiresAt,
			Payload:     m.Command.Payload,
		},
	})
}

// UnmarshalJSON decodes material written by MarshalJSON.
func (m *Material) UnmarshalJSON(data []byte) error {
	var raw materialJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	m.Handshake = Handshake{
		DeviceID:  raw.Handshake.DeviceID,
		Key:       raw.Handshake.HandshakeKey,
		Payload:   raw.Handshake.Payload,
		ExpiresAt: raw.Handshake.Expiration,
	}
	m.Command = Command{
		DeviceID:  raw.Command.DeviceID,
		Type:      raw.Command.CommandType,
		Payload:   raw.Command.Payload,
		ExpiresAt: raw.Command.Expiration,
	}
	return nil
}

// Pair matches handshakes and activate commands by device ID.
// Devices lacking either half are omitted.
func Pair(handshakes []Handshake, commands []Command) map[uint64]Material {
	byDevice := make(map[uint64]Material)
	for _, h := range handshakes {
		byDevice[h.DeviceID] = Material{Handshake: h}
	}

	out := make(map[uint64]Material)
	for _, c := range commands {
		if c.Type != CommandActivate {
			continue
		}
		m, ok := byDevice[c.DeviceID]
		if !ok {
			continue
		}
		m.Command = c
		out[c.DeviceID] = m
	}
	return out
}
