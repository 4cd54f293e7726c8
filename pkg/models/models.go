package models

import (
	"fmt"
	"log/slog"
)

// ActionKind names the state transition requested for the local node.
type ActionKind string

const (
	ActionMute     ActionKind = "mute"
	ActionUnmute   ActionKind = "unmute"
	ActionManage   ActionKind = "manage"
	ActionUnmanage ActionKind = "unmanage"
	ActionInit     ActionKind = "init" // mute + group membership + custom properties
)

// ActionKinds lists every accepted action in the order shown in usage text.
func ActionKinds() []ActionKind {
	return []ActionKind{ActionMute, ActionUnmute, ActionManage, ActionUnmanage, ActionInit}
}

// Valid reports whether k is one of the known actions.
func (k ActionKind) Valid() bool {
	for _, known := range ActionKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Credential is the account used against the inventory server.
// It lives only in memory; the password never reaches a log line.
type Credential struct {
	Username string
	Password string
}

func (c Credential) String() string {
	return fmt.Sprintf("%s:<redacted>", c.Username)
}

// LogValue implements slog.LogValuer
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("password", "<redacted>"),
	)
}

// Entity is the remote node record of the local machine (Orion.Nodes row)
type Entity struct {
	URI     string `json:"Uri"`
	NodeID  int64  `json:"NodeID"`
	Caption string `json:"Caption"`
	SysName string `json:"SysName"`
}

// Group is a remote container (Orion.Container row)
type Group struct {
	ContainerID int64  `json:"ContainerID"`
	URI         string `json:"Uri"`
	Name        string `json:"Name"`
}

// ActionResult is the pass/fail outcome of one step of a run.
type ActionResult struct {
	Step    string
	OK      bool
	Fatal   bool // set only on failures that end the run; best-effort failures are logged
	Message string
}
