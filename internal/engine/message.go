package engine

import (
	"time"

	"TrendSentry/internal/domain/models"
)

// MessageKind tags the payload shape of a worker/coordinator message. The
// set is closed; receivers must treat the tag as authoritative and ignore
// kinds they do not recognise.
type MessageKind string

const (
	// Worker -> coordinator.
	KindNewSignal        MessageKind = "new_signal"
	KindRiskWarning      MessageKind = "risk_warning"
	KindMonitoringStatus MessageKind = "monitoring_status"
	KindWorkerReady      MessageKind = "worker_ready"
	KindWorkerError      MessageKind = "worker_error"
	KindNotifyForward    MessageKind = "notify_forward"
	KindHeartbeat        MessageKind = "heartbeat"
)

// Payload is the closed union of message bodies. Each payload knows the
// only kind it may travel under.
type Payload interface {
	MessageKind() MessageKind
}

// Message is one envelope on the worker->coordinator channel. Receipt of
// any message refreshes the sender's heartbeat, whatever the kind.
type Message struct {
	WorkerID string
	Kind     MessageKind
	At       time.Time
	Payload  Payload
}

// NewMessage stamps an envelope with the payload's own kind.
func NewMessage(workerID string, p Payload) Message {
	return Message{WorkerID: workerID, Kind: p.MessageKind(), At: time.Now(), Payload: p}
}

type NewSignalPayload struct {
	Candidate *models.Candidate
}

func (NewSignalPayload) MessageKind() MessageKind { return KindNewSignal }

type RiskWarningPayload struct {
	Warning *models.RiskWarning
}

func (RiskWarningPayload) MessageKind() MessageKind { return KindRiskWarning }

type MonitoringStatusPayload struct {
	OpenSignals int
	Transitions int
	Warnings    int
}

func (MonitoringStatusPayload) MessageKind() MessageKind { return KindMonitoringStatus }

type WorkerReadyPayload struct {
	Symbols []string
}

func (WorkerReadyPayload) MessageKind() MessageKind { return KindWorkerReady }

type WorkerErrorPayload struct {
	Symbol string
	Err    string
}

func (WorkerErrorPayload) MessageKind() MessageKind { return KindWorkerError }

// NotifyForwardPayload asks the coordinator to format and dispatch a
// notification on the sender's behalf. Exactly one field is set.
type NotifyForwardPayload struct {
	Transition *models.Transition
	Digest     *models.DailyDigest
}

func (NotifyForwardPayload) MessageKind() MessageKind { return KindNotifyForward }

type HeartbeatPayload struct{}

func (HeartbeatPayload) MessageKind() MessageKind { return KindHeartbeat }

// CommandKind tags coordinator -> worker control messages.
type CommandKind string

const (
	CmdShutdown    CommandKind = "shutdown"
	CmdPause       CommandKind = "pause"
	CmdResume      CommandKind = "resume"
	CmdHealthCheck CommandKind = "health_check"
)

// Command is a control request delivered on a worker's control channel.
// Workers honour it at the next safe point (top of the tick loop).
type Command struct {
	Kind CommandKind
	At   time.Time
}
