package types

// EventKind is the kind of a service event
type EventKind int

// event kinds
const (
	EventProgress EventKind = iota
	EventStatus
	EventLog
	EventError
	EventResolved
	EventLivepushStart
	EventLivepushOutput
	EventLivepushExit
)

// String .
func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventStatus:
		return "status"
	case EventLog:
		return "log"
	case EventError:
		return "error"
	case EventResolved:
		return "resolved"
	case EventLivepushStart:
		return "livepush-start"
	case EventLivepushOutput:
		return "livepush-output"
	case EventLivepushExit:
		return "livepush-exit"
	}
	return "unknown"
}

// ServiceEvent is one line of build or livepush output of a service
type ServiceEvent struct {
	Kind    EventKind
	Message string
	// Code is the exit code of LivepushExit events
	Code int
}

// ProgressSink receives service output, demultiplexed by service name.
// Implementations must be safe for concurrent use.
type ProgressSink interface {
	OnServiceEvent(service string, ev ServiceEvent)
}

// ProgressSinkFunc adapts a func to ProgressSink
type ProgressSinkFunc func(service string, ev ServiceEvent)

// OnServiceEvent .
func (f ProgressSinkFunc) OnServiceEvent(service string, ev ServiceEvent) {
	f(service, ev)
}

// DiscardSink drops every event
var DiscardSink = ProgressSinkFunc(func(string, ServiceEvent) {})
