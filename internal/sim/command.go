package sim

import "time"

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandUpdateConfig CommandType = "UpdateConfig"
	CommandStart        CommandType = "Start"
	CommandPause        CommandType = "Pause"
	CommandReset        CommandType = "Reset"
)

// Command represents a control intent captured for processing before the
// next tick. SessionID identifies the producing control session for
// throttling and acknowledgements.
type Command struct {
	OriginTick uint64       `json:"originTick"`
	SessionID  string       `json:"sessionId"`
	Type       CommandType  `json:"type"`
	IssuedAt   time.Time    `json:"issuedAt"`
	Config     *ConfigPatch `json:"config,omitempty"`
}
