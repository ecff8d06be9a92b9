// Package ipc is the newline-delimited JSON control protocol spoken over the
// practice session's unix socket.
package ipc

// Commands understood by a practice session.
const (
	CommandStatus   = "status"
	CommandSelect   = "select"
	CommandDeselect = "deselect"
	CommandRetry    = "retry"
	CommandStop     = "stop"
)

type Request struct {
	Command string `json:"command"`
	Item    string `json:"item,omitempty"`
}

type Response struct {
	OK      bool    `json:"ok"`
	State   string  `json:"state,omitempty"`
	Message string  `json:"message,omitempty"`
	Error   string  `json:"error,omitempty"`
	Status  *Status `json:"status,omitempty"`
}

// Status is the session read model returned by the status command.
type Status struct {
	SessionID string       `json:"session_id"`
	Lesson    string       `json:"lesson,omitempty"`
	Mode      string       `json:"mode"`
	Selected  string       `json:"selected,omitempty"`
	Detected  string       `json:"detected,omitempty"`
	LastError string       `json:"last_error,omitempty"`
	Blocking  string       `json:"blocking,omitempty"`
	Progress  int          `json:"progress"`
	Done      bool         `json:"done"`
	Sentence  []string     `json:"sentence,omitempty"`
	Items     []ItemStatus `json:"items"`
}

type ItemStatus struct {
	ID       string `json:"id"`
	Expected string `json:"expected"`
	Status   string `json:"status"`
}
