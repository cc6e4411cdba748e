package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/habiliai/agentmesh/errors"
)

type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
	TaskStateUnknown       TaskState = "unknown"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected:
		return true
	default:
		return false
	}
}

const (
	KindTask    = "task"
	KindMessage = "message"
	KindText    = "text"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

type Part struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func TextPart(text string) Part {
	return Part{Kind: KindText, Text: text}
}

// UnmarshalJSON accepts the older "type" discriminator as an alias of "kind".
func (p *Part) UnmarshalJSON(data []byte) error {
	type plain Part
	var v struct {
		plain
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Part(v.plain)
	if p.Kind == "" {
		p.Kind = v.Type
	}

	return nil
}

type Message struct {
	Kind      string         `json:"kind"`
	MessageID string         `json:"messageId"`
	Role      Role           `json:"role"`
	Parts     []Part         `json:"parts"`
	TaskID    string         `json:"taskId,omitempty"`
	ContextID string         `json:"contextId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewTextMessage(role Role, text string) Message {
	return Message{
		Kind:      KindMessage,
		MessageID: uuid.NewString(),
		Role:      role,
		Parts:     []Part{TextPart(text)},
	}
}

// Text returns the first text part of the message.
func (m Message) Text() (string, bool) {
	return firstText(m.Parts)
}

type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

type Artifact struct {
	ArtifactID string         `json:"artifactId"`
	Name       string         `json:"name,omitempty"`
	Parts      []Part         `json:"parts"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewTextArtifact(name, text string) Artifact {
	return Artifact{
		ArtifactID: uuid.NewString(),
		Name:       name,
		Parts:      []Part{TextPart(text)},
	}
}

type Task struct {
	Kind      string         `json:"kind"`
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewSubmittedTask creates the task an inbound message starts.
func NewSubmittedTask(msg Message) *Task {
	task := &Task{
		Kind:      KindTask,
		ID:        msg.TaskID,
		ContextID: msg.ContextID,
		Status: TaskStatus{
			State:     TaskStateSubmitted,
			Timestamp: Now(),
		},
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.ContextID == "" {
		task.ContextID = uuid.NewString()
	}
	msg.TaskID = task.ID
	msg.ContextID = task.ContextID
	task.History = append(task.History, msg)

	return task
}

// ArtifactText returns the first text part of the first artifact that has one.
func (t *Task) ArtifactText() (string, bool) {
	for _, artifact := range t.Artifacts {
		if text, ok := firstText(artifact.Parts); ok {
			return text, true
		}
	}
	return "", false
}

// SendMessageResult is either a Task or a Message, discriminated by "kind".
type SendMessageResult struct {
	Task    *Task
	Message *Message
}

func (r SendMessageResult) MarshalJSON() ([]byte, error) {
	switch {
	case r.Task != nil:
		return json.Marshal(r.Task)
	case r.Message != nil:
		return json.Marshal(r.Message)
	default:
		return []byte("null"), nil
	}
}

func (r *SendMessageResult) UnmarshalJSON(data []byte) error {
	var head struct {
		Kind   string          `json:"kind"`
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return errors.Wrapf(err, "failed to decode send result")
	}

	kind := head.Kind
	if kind == "" && len(head.Status) > 0 {
		kind = KindTask
	}
	switch kind {
	case KindTask:
		r.Task = &Task{}
		return json.Unmarshal(data, r.Task)
	case KindMessage:
		r.Message = &Message{}
		return json.Unmarshal(data, r.Message)
	default:
		return errors.Wrapf(errors.ErrInvalidRequest, "unknown result kind %q", head.Kind)
	}
}

func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func firstText(parts []Part) (string, bool) {
	for _, part := range parts {
		if part.Kind == KindText {
			return part.Text, true
		}
	}
	return "", false
}
