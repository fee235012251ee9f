package model

import "encoding/json"

// wire message families exchanged over a hub connection

const (
	MsgTypeIdentify  = "identify"
	MsgTypeTelemetry = "telemetry"
)

type Role string

const (
	RoleAgent  Role = "agent"
	RoleClient Role = "client"
)

// IdentifyMsg is sent once at connection start and declares who the peer is.
type IdentifyMsg struct {
	Type      string `json:"type"`
	StationID string `json:"station_id,omitempty"`
	Role      Role   `json:"role"`
}

// TelemetryMsg is the agent data message relayed verbatim to all clients.
type TelemetryMsg struct {
	Type string `json:"type"`
	TelemetryFrame
}

// CommandMsg is addressed to a single agent. Args carries command-specific
// fields that are opaque to the transport layer.
type CommandMsg struct {
	Command string                     `json:"command"`
	Args    map[string]json.RawMessage `json:"args,omitempty"`
}

// CommandType is the closed set of commands the agent itself understands.
// Anything else maps to CommandUnknown and fails soft at the dispatcher.
type CommandType int

const (
	CommandUnknown CommandType = iota
	CommandShutdown
	CommandRestart
	CommandPanic
	CommandKioskOn
	CommandKioskOff
	CommandJoinLobby
)

var commandNames = map[string]CommandType{
	"shutdown":   CommandShutdown,
	"restart":    CommandRestart,
	"panic":      CommandPanic,
	"kiosk_on":   CommandKioskOn,
	"kiosk_off":  CommandKioskOff,
	"join_lobby": CommandJoinLobby,
}

// ParseCommand maps a wire command name to its CommandType.
func ParseCommand(name string) CommandType {
	if ct, ok := commandNames[name]; ok {
		return ct
	}
	return CommandUnknown
}

func (c CommandType) String() string {
	for name, ct := range commandNames {
		if ct == c {
			return name
		}
	}
	return "unknown"
}
