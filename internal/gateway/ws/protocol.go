package ws

import (
	"encoding/json"
	"time"

	"github.com/slok/kage/internal/model"
)

// MessageType identifies the kind of message.
type MessageType string

const (
	// Client requests, the reply uses the same type and envelope ID.
	MsgExecRequest MessageType = "exec.request"
	MsgExecApprove MessageType = "exec.approve"
	MsgExecList    MessageType = "exec.list"
	MsgRootSet     MessageType = "root.set"
	MsgRootGet     MessageType = "root.get"
	MsgFSWrite     MessageType = "fs.write"
	MsgFSRead      MessageType = "fs.read"
	MsgFSList      MessageType = "fs.list"
	MsgAIComplete  MessageType = "ai.complete"
	MsgAICancel    MessageType = "ai.cancel"
	MsgAISources   MessageType = "ai.sources"
	MsgCfgGet      MessageType = "cfg.get"
	MsgCfgUpdate   MessageType = "cfg.update"

	// Server pushes.
	MsgExecPending MessageType = "exec.pending"
	MsgExecResult  MessageType = "exec.result"

	MsgError MessageType = "error"
)

// Envelope wraps every message.
type Envelope struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func newEnvelope(t MessageType, id string, payload any) (*Envelope, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return &Envelope{Type: t, ID: id, Payload: raw}, nil
}

// Decode unmarshals the payload into target.
func (e *Envelope) Decode(target any) error {
	if len(e.Payload) == 0 {
		return json.Unmarshal([]byte("{}"), target)
	}
	return json.Unmarshal(e.Payload, target)
}

type ExecRequestPayload struct {
	ID      string `json:"id,omitempty"`
	Command string `json:"command"`
	Cwd     string `json:"cwd,omitempty"`
}

type ExecQueuedPayload struct {
	Queued bool   `json:"queued"`
	ID     string `json:"id"`
}

type ExecPendingPayload struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	Cwd       string    `json:"cwd"`
	CreatedAt time.Time `json:"createdAt"`
}

type ExecListPayload struct {
	Pending []ExecPendingPayload `json:"pending"`
}

type ExecApprovePayload struct {
	ID       string `json:"id"`
	Approved bool   `json:"approved"`
}

// ExecResultPayload is the JSON form of model.ExecutionResult.
type ExecResultPayload struct {
	ID         string `json:"id,omitempty"`
	Status     string `json:"status"`
	ExitCode   *int   `json:"exitCode,omitempty"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	Error      string `json:"error,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
	DurationMS int64  `json:"durationMs,omitempty"`
}

// MarshalJSON always sets the output fields of done results, even when empty.
func (p ExecResultPayload) MarshalJSON() ([]byte, error) {
	type plain ExecResultPayload
	if p.Status != string(model.ExecutionStatusDone) {
		return json.Marshal(plain(p))
	}

	return json.Marshal(struct {
		plain
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
	}{plain: plain(p), Stdout: p.Stdout, Stderr: p.Stderr})
}

type RootSetPayload struct {
	Path string `json:"path"`
}

type RootPayload struct {
	Root string `json:"root"`
}

type FSWritePayload struct {
	Rel     string `json:"rel"`
	Content string `json:"content"`
}

type FSWriteResultPayload struct {
	OK  bool   `json:"ok"`
	Rel string `json:"rel"`
}

type FSReadPayload struct {
	Rel string `json:"rel"`
	Max int64  `json:"max,omitempty"`
}

type FSReadResultPayload struct {
	Content   string `json:"content"`
	Size      int64  `json:"size"`
	Truncated bool   `json:"truncated"`
}

type FSListPayload struct {
	Rel string `json:"rel"`
}

type FSEntryPayload struct {
	Name string `json:"name"`
	Dir  bool   `json:"dir"`
	Size int64  `json:"size"`
}

type FSListResultPayload struct {
	Entries []FSEntryPayload `json:"entries"`
}

type AICompletePayload struct {
	Prompt string `json:"prompt"`
}

type AITextPayload struct {
	Text string `json:"text"`
	// Canceled is set when the completion was cancelled or replaced by a newer one.
	Canceled bool `json:"canceled,omitempty"`
}

type AICancelPayload struct {
	Canceled bool `json:"canceled"`
}

type AISourcePayload struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	EnvVar    string   `json:"envVar"`
	HasKey    bool     `json:"hasKey"`
	Supported bool     `json:"supported"`
	Models    []string `json:"models"`
}

type AISourcesPayload struct {
	Sources []AISourcePayload `json:"sources"`
}

type ConfigPayload struct {
	RootDir  string `json:"rootDir"`
	AutoExec bool   `json:"autoExec"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type CfgPayload struct {
	Config ConfigPayload `json:"config"`
}

// CfgUpdatePayload is a partial config update, missing fields are left unchanged.
type CfgUpdatePayload struct {
	RootDir  *string `json:"rootDir,omitempty"`
	AutoExec *bool   `json:"autoExec,omitempty"`
	Provider *string `json:"provider,omitempty"`
	Model    *string `json:"model,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func cfgPayload(s *model.Settings) CfgPayload {
	return CfgPayload{Config: ConfigPayload{
		RootDir:  s.RootDir,
		AutoExec: s.AutoExec,
		Provider: s.Provider,
		Model:    s.Model,
	}}
}

func pendingPayload(p model.PendingCommand) ExecPendingPayload {
	return ExecPendingPayload{
		ID:        p.ID,
		Command:   p.Command,
		Cwd:       p.Cwd,
		CreatedAt: p.CreatedAt,
	}
}

// NewExecResultPayload maps an execution result to its JSON form.
func NewExecResultPayload(id string, res model.ExecutionResult) ExecResultPayload {
	p := ExecResultPayload{ID: id, Status: string(res.Status())}

	switch r := res.(type) {
	case model.DoneResult:
		code := r.ExitCode
		p.ExitCode = &code
		p.Stdout = r.Stdout
		p.Stderr = r.Stderr
		p.Truncated = r.Truncated
		p.DurationMS = r.Duration.Milliseconds()
	case model.ErrorResult:
		p.Error = r.Message
		p.ExitCode = r.ExitCode
		p.Stdout = r.Stdout
		p.Stderr = r.Stderr
		p.Truncated = r.Truncated
	}

	return p
}
