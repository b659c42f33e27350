package credentials

// CommandType names the kind of signed command the cloud issued.
// The device only interprets the opaque payload; the type is used for
// bookkeeping and for picking the right material when activating.
type CommandType string

const (
	// CommandActivate unlocks the cylinder for its configured activation time.
	CommandActivate CommandType = "Activate"
	// CommandAutoActivate is issued for automatic activation on approach.
	CommandAutoActivate CommandType = "AutoActivate"
	// CommandKeepActive keeps the cylinder activated until deactivated.
	CommandKeepActive CommandType = "KeepActive"
	// CommandPreActivate prepares a following activation.
	CommandPreActivate CommandType = "PreActivate"
	// CommandDeactivate ends an activation early.
	CommandDeactivate CommandType = "Deactivate"
	// CommandFirmware carries a firmware update instruction.
	CommandFirmware CommandType = "Firmware"
)

// IsValid reports whether c is one of the known command types.
func (c CommandType) IsValid() bool {
	switch c {
	case CommandActivate, CommandAutoActivate, CommandKeepActive,
		CommandPreActivate, CommandDeactivate, CommandFirmware:
		return true
	default:
		return false
	}
}

func (c CommandType) String() string {
	if c == "" {
		return "Unknown"
	}
	return string(c)
}
