// Package iec104 models the addressable information points of an
// IEC 60870-5-104 station: their value, quality and timing state, command
// arbitration, periodic reporting and application callbacks. Wire framing,
// sequence numbering and connection handling stay with the protocol engine
// driving the station.
package iec104

import "time"

// Role tells on which side of the telecontrol link a station lives.
type Role uint8

const (
	// RoleServer is the controlled station side, values flow to the client.
	RoleServer Role = iota
	// RoleClient is the controlling station side, commands flow to the server.
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "SERVER"
	case RoleClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// TypeID is the IEC 60870-5-101/104 information type of a point. It is fixed
// at point creation and decides both the direction (monitoring or control)
// and the value category carried by the point.
type TypeID uint8

const (
	M_SP_NA_1 TypeID = 1  // single point
	M_DP_NA_1 TypeID = 3  // double point
	M_ST_NA_1 TypeID = 5  // step position
	M_ME_NA_1 TypeID = 9  // measured, normalized
	M_ME_NB_1 TypeID = 11 // measured, scaled
	M_ME_NC_1 TypeID = 13 // measured, short float
	M_IT_NA_1 TypeID = 15 // integrated total
	M_SP_TB_1 TypeID = 30 // single point with CP56Time2a
	M_DP_TB_1 TypeID = 31 // double point with CP56Time2a
	M_ME_TF_1 TypeID = 36 // measured, short float with CP56Time2a
	C_SC_NA_1 TypeID = 45 // single command
	C_DC_NA_1 TypeID = 46 // double command
	C_RC_NA_1 TypeID = 47 // regulating step command
	C_SE_NA_1 TypeID = 48 // setpoint, normalized
	C_SE_NB_1 TypeID = 49 // setpoint, scaled
	C_SE_NC_1 TypeID = 50 // setpoint, short float
	C_SC_TA_1 TypeID = 58 // single command with CP56Time2a
	C_DC_TA_1 TypeID = 59 // double command with CP56Time2a
	C_RC_TA_1 TypeID = 60 // regulating step command with CP56Time2a
	C_SE_TC_1 TypeID = 63 // setpoint, short float with CP56Time2a
)

var typeIDNames = map[TypeID]string{
	M_SP_NA_1: "M_SP_NA_1",
	M_DP_NA_1: "M_DP_NA_1",
	M_ST_NA_1: "M_ST_NA_1",
	M_ME_NA_1: "M_ME_NA_1",
	M_ME_NB_1: "M_ME_NB_1",
	M_ME_NC_1: "M_ME_NC_1",
	M_IT_NA_1: "M_IT_NA_1",
	M_SP_TB_1: "M_SP_TB_1",
	M_DP_TB_1: "M_DP_TB_1",
	M_ME_TF_1: "M_ME_TF_1",
	C_SC_NA_1: "C_SC_NA_1",
	C_DC_NA_1: "C_DC_NA_1",
	C_RC_NA_1: "C_RC_NA_1",
	C_SE_NA_1: "C_SE_NA_1",
	C_SE_NB_1: "C_SE_NB_1",
	C_SE_NC_1: "C_SE_NC_1",
	C_SC_TA_1: "C_SC_TA_1",
	C_DC_TA_1: "C_DC_TA_1",
	C_RC_TA_1: "C_RC_TA_1",
	C_SE_TC_1: "C_SE_TC_1",
}

func (t TypeID) String() string {
	if s, ok := typeIDNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// ValueKind is the value category a TypeID maps to.
type ValueKind uint8

const (
	KindSingle ValueKind = iota
	KindDouble
	KindStep
	KindMeasured
	KindCounter
)

func (k ValueKind) String() string {
	switch k {
	case KindSingle:
		return "SINGLE"
	case KindDouble:
		return "DOUBLE"
	case KindStep:
		return "STEP"
	case KindMeasured:
		return "MEASURED"
	case KindCounter:
		return "COUNTER"
	default:
		return "UNKNOWN"
	}
}

var typeIDKinds = map[TypeID]ValueKind{
	M_SP_NA_1: KindSingle,
	M_DP_NA_1: KindDouble,
	M_ST_NA_1: KindStep,
	M_ME_NA_1: KindMeasured,
	M_ME_NB_1: KindMeasured,
	M_ME_NC_1: KindMeasured,
	M_IT_NA_1: KindCounter,
	M_SP_TB_1: KindSingle,
	M_DP_TB_1: KindDouble,
	M_ME_TF_1: KindMeasured,
	C_SC_NA_1: KindSingle,
	C_DC_NA_1: KindDouble,
	C_RC_NA_1: KindStep,
	C_SE_NA_1: KindMeasured,
	C_SE_NB_1: KindMeasured,
	C_SE_NC_1: KindMeasured,
	C_SC_TA_1: KindSingle,
	C_DC_TA_1: KindDouble,
	C_RC_TA_1: KindStep,
	C_SE_TC_1: KindMeasured,
}

// Kind reports the value category of the type, false for unknown types.
func (t TypeID) Kind() (ValueKind, bool) {
	k, ok := typeIDKinds[t]
	return k, ok
}

// IsMonitor reports whether the type carries values from server to client.
func (t TypeID) IsMonitor() bool {
	_, ok := typeIDKinds[t]
	return ok && t < C_SC_NA_1
}

// IsControl reports whether the type carries commands from client to server.
func (t TypeID) IsControl() bool {
	_, ok := typeIDKinds[t]
	return ok && t >= C_SC_NA_1
}

// Cause is the cause of transmission tagged onto reports and commands.
type Cause uint8

const (
	CauseUnknown        Cause = 0
	CausePeriodic       Cause = 1
	CauseBackground     Cause = 2
	CauseSpontaneous    Cause = 3
	CauseInitialized    Cause = 4
	CauseRequest        Cause = 5
	CauseActivation     Cause = 6
	CauseActivationCon  Cause = 7
	CauseDeactivation   Cause = 8
	CauseActivationTerm Cause = 10
	CauseInterrogation  Cause = 20
)

func (c Cause) String() string {
	switch c {
	case CausePeriodic:
		return "PERIODIC"
	case CauseBackground:
		return "BACKGROUND"
	case CauseSpontaneous:
		return "SPONTANEOUS"
	case CauseInitialized:
		return "INITIALIZED"
	case CauseRequest:
		return "REQUEST"
	case CauseActivation:
		return "ACTIVATION"
	case CauseActivationCon:
		return "ACTIVATION_CON"
	case CauseDeactivation:
		return "DEACTIVATION"
	case CauseActivationTerm:
		return "ACTIVATION_TERM"
	case CauseInterrogation:
		return "INTERROGATION"
	default:
		return "UNKNOWN"
	}
}

// ResponseState is the outcome of handling an incoming command or report.
type ResponseState uint8

const (
	ResponseNone ResponseState = iota
	ResponseSuccess
	ResponseFailure
)

func (s ResponseState) String() string {
	switch s {
	case ResponseNone:
		return "NONE"
	case ResponseSuccess:
		return "SUCCESS"
	case ResponseFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// CommandMode governs how commands on a control point are arbitrated.
type CommandMode uint32

const (
	// DirectCommand applies a command immediately on receipt.
	DirectCommand CommandMode = iota
	// SelectAndExecuteCommand requires the originator to hold the select
	// lock before its execute is applied.
	SelectAndExecuteCommand
)

func (m CommandMode) String() string {
	switch m {
	case DirectCommand:
		return "DIRECT"
	case SelectAndExecuteCommand:
		return "SELECT_AND_EXECUTE"
	default:
		return "UNKNOWN"
	}
}

// Qualifier is the qualifier of command, mostly the output pulse duration.
type Qualifier uint8

const (
	QualifierNone Qualifier = iota
	QualifierShortPulse
	QualifierLongPulse
	QualifierPersistent
)

func (q Qualifier) String() string {
	switch q {
	case QualifierNone:
		return "NONE"
	case QualifierShortPulse:
		return "SHORT_PULSE"
	case QualifierLongPulse:
		return "LONG_PULSE"
	case QualifierPersistent:
		return "PERSISTENT"
	default:
		return "UNKNOWN"
	}
}

// Step is a regulating step command or step position value.
type Step uint8

const (
	StepInvalid0 Step = iota
	StepLower
	StepHigher
	StepInvalid3
)

func (s Step) String() string {
	switch s {
	case StepInvalid0:
		return "INVALID_0"
	case StepLower:
		return "LOWER"
	case StepHigher:
		return "HIGHER"
	case StepInvalid3:
		return "INVALID_3"
	default:
		return "UNKNOWN"
	}
}

// DoublePoint is a two-bit switch position value.
type DoublePoint uint8

const (
	DoublePointIndeterminate DoublePoint = iota
	DoublePointOff
	DoublePointOn
	DoublePointIntermediate
)

func (d DoublePoint) String() string {
	switch d {
	case DoublePointIndeterminate:
		return "INDETERMINATE"
	case DoublePointOff:
		return "OFF"
	case DoublePointOn:
		return "ON"
	case DoublePointIntermediate:
		return "INTERMEDIATE"
	default:
		return "UNKNOWN"
	}
}

func nowMilliseconds() uint64 {
	return uint64(time.Now().UnixMilli())
}
