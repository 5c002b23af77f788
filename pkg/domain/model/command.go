package model

import "time"

// Command is an external tool invocation
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  map[string]string
}

// CommandResult is the outcome of a finished Command
type CommandResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Success reports whether the command exited with status zero
func (x *CommandResult) Success() bool {
	return x.ExitCode == 0
}
