package server

import "time"

const (
	writeWait = 10 * time.Second

	// CommandRejectInvalid indicates a malformed or unrecognized command.
	CommandRejectInvalid = "invalid_command"
)
