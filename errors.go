package anyworld

import (
	"encoding/json"
	"fmt"
	"time"
)

// TransportError wraps a network or HTTP-level failure so callers can inspect
// the status code and the server-provided error code/message.
type TransportError struct {
	StatusCode int
	Code       string        // server error code from the JSON body, e.g. "Not Found"
	Message    string        // server error message from the JSON body
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *TransportError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	if e.Err != nil {
		if e.StatusCode != 0 {
			return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
		}
		return e.Err.Error()
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// AnimationFailedError reports that the remote pipeline reached a terminal
// failure stage for a model. Diagnostics carries the server's last status
// payload verbatim.
type AnimationFailedError struct {
	ModelID     string
	Stage       string
	Diagnostics json.RawMessage
}

func (e *AnimationFailedError) Error() string {
	return fmt.Sprintf("model %s failed at stage %q", e.ModelID, e.Stage)
}

// PollTimeoutError reports that the configured deadline elapsed before the
// model reached a terminal stage. LastStage is the last non-terminal stage
// observed, empty if the model was never ready enough to report one.
type PollTimeoutError struct {
	ModelID   string
	LastStage string
	Elapsed   time.Duration
	Deadline  time.Duration
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for model %s after %v (deadline %v, last stage %q)",
		e.ModelID, e.Elapsed.Round(time.Millisecond), e.Deadline, e.LastStage)
}
