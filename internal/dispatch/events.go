package dispatch

import "fmt"

// Kind classifies an Event.
type Kind string

// Event kinds.
const (
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
	KindFinish  Kind = "finish"
)

// Event is one structured progress report from a dispatch run.
type Event struct {
	Kind    Kind   `json:"type"`
	Message string `json:"msg"`
}

// String renders the event as "[KIND] message".
func (e Event) String() string {
	return fmt.Sprintf("[%s] %s", upper(e.Kind), e.Message)
}

func upper(k Kind) string {
	switch k {
	case KindInfo:
		return "INFO"
	case KindWarning:
		return "WARNING"
	case KindError:
		return "ERROR"
	case KindFinish:
		return "FINISH"
	}
	return string(k)
}

func infof(format string, args ...any) Event {
	return Event{Kind: KindInfo, Message: fmt.Sprintf(format, args...)}
}

func warnf(format string, args ...any) Event {
	return Event{Kind: KindWarning, Message: fmt.Sprintf(format, args...)}
}

func errorf(format string, args ...any) Event {
	return Event{Kind: KindError, Message: fmt.Sprintf(format, args...)}
}

func finishf(format string, args ...any) Event {
	return Event{Kind: KindFinish, Message: fmt.Sprintf(format, args...)}
}

// Finish messages of runs that did not complete the batch.
const (
	FinishEmpty      = "Process finished empty"
	FinishTerminated = "Process terminated early"
)

// Aborted reports whether events end with a terminated run.
func Aborted(events []Event) bool {
	if len(events) == 0 {
		return false
	}
	last := events[len(events)-1]
	return last.Kind == KindFinish && last.Message == FinishTerminated
}
