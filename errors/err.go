package errors

import (
	"fmt"
)

var (
	ErrInvalidConfig  = fmt.Errorf("agentmesh: invalid config")
	ErrNotFound       = fmt.Errorf("agentmesh: not found")
	ErrInvalidParams  = fmt.Errorf("agentmesh: invalid params")
	ErrInternal       = fmt.Errorf("agentmesh: internal error")
	ErrInvalidRequest = fmt.Errorf("agentmesh: invalid request")

	// ErrToolServerForbidden marks a tool server that could not be started
	// because the current process is not permitted to spawn or reach it.
	ErrToolServerForbidden  = fmt.Errorf("agentmesh: tool server forbidden")
	ErrTaskNotCancelable    = fmt.Errorf("agentmesh: task cannot be canceled")
	ErrTaskFinalized        = fmt.Errorf("agentmesh: task already reached a final state")
	ErrUnsupportedOperation = fmt.Errorf("agentmesh: unsupported operation")
)
