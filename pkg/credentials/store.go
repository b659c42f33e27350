package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/zalando/go-keyring"
)

// DefaultService is the keyring service name material is stored under.
const DefaultService = "bold-smart-lock"

// Store keeps activation material in the OS keyring, one entry per device.
type Store struct {
	service string
}

// NewStore creates a keyring-backed store. An empty service uses DefaultService.
func NewStore(service string) *Store {
	if service == "" {
		service = DefaultService
	}
	return &Store{service: service}
}

// Save writes the material for its device, replacing any previous entry.
func (s *Store) Save(m Material) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := keyring.Set(s.service, deviceKey(m.Handshake.DeviceID), string(data)); err != nil {
		return fmt.Errorf("credentials: keyring set: %w", err)
	}
	return nil
}

// Load reads the material stored for deviceID.
func (s *Store) Load(deviceID uint64) (Material, error) {
	secret, err := keyring.Get(s.service, deviceKey(deviceID))
	if errors.Is(err, keyring.ErrNotFound) {
		return Material{}, ErrNotFound
	}
	if err != nil {
		return Material{}, fmt.Errorf("credentials: keyring get: %w", err)
	}

	var m Material
	if err := json.Unmarshal([]byte(secret), &m); err != nil {
		return Material{}, err
	}
	return m, nil
}

// Delete removes the material stored for deviceID.
func (s *Store) Delete(deviceID uint64) error {
	err := keyring.Delete(s.service, deviceKey(deviceID))
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func deviceKey(deviceID uint64) string {
	return strconv.FormatUint(deviceID, 10)
}
