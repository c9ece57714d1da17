package iec104

import "time"

// Report is an outgoing value report or command handed to the connector.
type Report struct {
	IOA       uint32
	Type      TypeID
	Value     Value
	Quality   Quality
	Cause     Cause
	Qualifier Qualifier
}

// Connector is the transport boundary of a station. Implementations own the
// actual connection, framing and retransmission; failures surface as plain
// errors, never as panics.
type Connector interface {
	// Send hands a report to the active connection.
	Send(r Report) error
	// RequestRead asks the remote side for the current value of ioa and
	// blocks until a response arrived or the timeout elapsed.
	RequestRead(ioa uint32, timeout time.Duration) error
	// Connected reports whether an active connection exists.
	Connected() bool
}

// IncomingMessage is a decoded command or report addressed to one point.
type IncomingMessage struct {
	// Originator identifies the issuing client, 0 when not supplied.
	Originator    uint8
	CommonAddress uint16
	IOA           uint32
	Type          TypeID
	Cause         Cause
	Value         Value
	Quality       Quality
	// Select marks a select command as opposed to an execute, only
	// meaningful for control types in select-and-execute mode.
	Select bool
}
