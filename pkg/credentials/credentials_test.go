package credentials

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/zalando/go-keyring"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testHandshake() Handshake {
	return Handshake{
		DeviceID:  12345,
		Key:       bytes.Repeat([]byte{0x01}, KeySize),
		Payload:   bytes.Repeat([]byte{0x02}, 57),
		ExpiresAt: testNow.Add(48 * time.Hour),
	}
}

func testCommand() Command {
	return Command{
		DeviceID:  12345,
		Type:      CommandActivate,
		Payload:   bytes.Repeat([]byte{0x03}, 46),
		ExpiresAt: testNow.Add(48 * time.Hour),
	}
}

func TestHandshakeValidate(t *testing.T) {
	h := testHandshake()
	if err := h.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	bad := h
	bad.Key = bad.Key[:15]
	if err := bad.Validate(); err != ErrInvalidKey {
		t.Errorf("short key: got %v, want ErrInvalidKey", err)
	}

	bad = h
	bad.Payload = nil
	if err := bad.Validate(); err != ErrEmptyPayload {
		t.Errorf("empty payload: got %v, want ErrEmptyPayload", err)
	}
}

func TestCommandValidate(t *testing.T) {
	c := testCommand()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	bad := c
	bad.Type = "Open"
	if err := bad.Validate(); err != ErrInvalidCommandType {
		t.Errorf("unknown type: got %v, want ErrInvalidCommandType", err)
	}
}

func TestExpiry(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		expired   bool
		refresh   bool
	}{
		{"far future", testNow.Add(72 * time.Hour), false, false},
		{"within margin", testNow.Add(time.Hour), false, true},
		{"exactly now", testNow, true, true},
		{"past", testNow.Add(-time.Minute), true, true},
		{"no expiry", time.Time{}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHandshake()
			h.ExpiresAt = tt.expiresAt
			if got := h.Expired(testNow); got != tt.expired {
				t.Errorf("Expired() = %v, want %v", got, tt.expired)
			}
			if got := h.NeedsRefresh(testNow, DefaultRefreshMargin); got != tt.refresh {
				t.Errorf("NeedsRefresh() = %v, want %v", got, tt.refresh)
			}

			c := testCommand()
			c.ExpiresAt = tt.expiresAt
			if got := c.Expired(testNow); got != tt.expired {
				t.Errorf("command Expired() = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestCheckPair(t *testing.T) {
	if err := CheckPair(testHandshake(), testCommand(), testNow); err != nil {
		t.Fatalf("CheckPair: %v", err)
	}

	c := testCommand()
	c.DeviceID = 99
	if err := CheckPair(testHandshake(), c, testNow); err != ErrDeviceMismatch {
		t.Errorf("mismatched devices: got %v, want ErrDeviceMismatch", err)
	}

	h := testHandshake()
	h.ExpiresAt = testNow.Add(-time.Second)
	if err := CheckPair(h, testCommand(), testNow); err != ErrExpired {
		t.Errorf("expired handshake: got %v, want ErrExpired", err)
	}

	c = testCommand()
	c.ExpiresAt = testNow.Add(-time.Second)
	if err := CheckPair(testHandshake(), c, testNow); err != ErrExpired {
		t.Errorf("expired command: got %v, want ErrExpired", err)
	}
}

func TestParseHandshakes(t *testing.T) {
	data := []byte(`[{
		"deviceId": 12345,
		"expiration": "2024-03-03T12:00:00Z",
		"handshakeKey": "AQEBAQEBAQEBAQEBAQEBAQ==",
		"payload": "AgIC"
	}]`)

	got, err := ParseHandshakes(data)
	if err != nil {
		t.Fatalf("ParseHandshakes: %v", err)
	}

	want := []Handshake{{
		DeviceID:  12345,
		Key:       bytes.Repeat([]byte{0x01}, 16),
		Payload:   []byte{0x02, 0x02, 0x02},
		ExpiresAt: time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC),
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseHandshakes mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHandshakesErrors(t *testing.T) {
	if _, err := ParseHandshakes([]byte(`{not json`)); !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("bad JSON: got %v, want ErrInvalidEncoding", err)
	}
	if _, err := ParseHandshakes([]byte(`[{"handshakeKey": "!!!"}]`)); !errors.Is(err, ErrInvalidEncoding) {
		t.Errorf("bad base64: got %v, want ErrInvalidEncoding", err)
	}
	if _, err := ParseHandshakes([]byte(`[{"deviceId": 1, "handshakeKey": "AQID", "payload": "AQ=="}]`)); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("short key: got %v, want ErrInvalidKey", err)
	}
}

func TestParseCommands(t *testing.T) {
	data := []byte(`[
		{"deviceId": 1, "commandType": "Activate", "expiration": "2024-03-03T12:00:00Z", "payload": "AwMD"},
		{"deviceId": 2, "commandType": "Deactivate", "expiration": "2024-03-03T12:00:00Z", "payload": "BA=="}
	]`)

	got, err := ParseCommands(data)
	if err != nil {
		t.Fatalf("ParseCommands: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d commands, want 2", len(got))
	}
	if got[0].Type != CommandActivate || !bytes.Equal(got[0].Payload, []byte{3, 3, 3}) {
		t.Errorf("command 0 = %+v", got[0])
	}
	if got[1].Type != CommandDeactivate || got[1].DeviceID != 2 {
		t.Errorf("command 1 = %+v", got[1])
	}

	if _, err := ParseCommands([]byte(`[{"deviceId": 1, "commandType": "Open", "payload": "AQ=="}]`)); !errors.Is(err, ErrInvalidCommandType) {
		t.Errorf("unknown type: got %v, want ErrInvalidCommandType", err)
	}
}

func TestPair(t *testing.T) {
	h1 := testHandshake()
	h2 := testHandshake()
	h2.DeviceID = 2

	deactivate := testCommand()
	deactivate.Type = CommandDeactivate
	deactivate.DeviceID = 2

	orphan := testCommand()
	orphan.DeviceID = 3

	got := Pair([]Handshake{h1, h2}, []Command{testCommand(), deactivate, orphan})
	if len(got) != 1 {
		t.Fatalf("Pair returned %d entries, want 1", len(got))
	}
	if m, ok := got[12345]; !ok || m.Command.Type != CommandActivate {
		t.Errorf("Pair()[12345] = %+v", m)
	}
}

func TestStore(t *testing.T) {
	keyring.MockInit()

	s := NewStore("")
	m := Material{Handshake: testHandshake(), Command: testCommand()}

	if _, err := s.Load(12345); err != ErrNotFound {
		t.Fatalf("Load before Save: got %v, want ErrNotFound", err)
	}
	if err := s.Save(m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(12345)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}

	if err := s.Delete(12345); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(12345); err != ErrNotFound {
		t.Errorf("second Delete: got %v, want ErrNotFound", err)
	}
}

func TestStoreKeyringError(t *testing.T) {
	boom := errors.New("keyring locked")
	keyring.MockInitWithError(boom)
	defer keyring.MockInit()

	s := NewStore("test")
	if err := s.Save(Material{Handshake: testHandshake(), Command: testCommand()}); !errors.Is(err, boom) {
		t.Errorf("Save: got %v, want wrapped keyring error", err)
	}
	if _, err := s.Load(1); !errors.Is(err, boom) {
		t.Errorf("Load: got %v, want wrapped keyring error", err)
	}
}
