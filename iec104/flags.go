package iec104

import (
	"strings"
	"sync/atomic"
)

// The flag types below are declared-order bitmasks with a canonical string
// form "<Label> set: { A | B }, <polarity>: <bool>" and a compact form that
// renders only the member list. Members always print in declared order.

type flagBits interface{ ~uint8 }

type flagName[T flagBits] struct {
	bit  T
	name string
}

func formatFlagMembers[T flagBits](v T, names []flagName[T]) string {
	sv := make([]string, 0, len(names))
	for _, n := range names {
		if v&n.bit != 0 {
			sv = append(sv, n.name)
		}
	}
	return strings.Join(sv, " | ")
}

func formatFlagSet[T flagBits](v T, label string, names []flagName[T], polarity string) string {
	if v == 0 {
		if polarity == "" {
			return label + " set: {}"
		}
		return label + " set: {}, " + polarity + ": True"
	}
	s := label + " set: { " + formatFlagMembers(v, names) + " }"
	if polarity != "" {
		s += ", " + polarity + ": False"
	}
	return s
}

func formatFlagString[T flagBits](v T, names []flagName[T]) string {
	if v == 0 {
		return "None"
	}
	return formatFlagMembers(v, names)
}

// Quality holds the IEC 60870-5 quality descriptor bits of a point value.
type Quality uint8

const (
	QualityGood               Quality = 0x00
	QualityOverflow           Quality = 0x01
	QualityElapsedTimeInvalid Quality = 0x08
	QualityBlocked            Quality = 0x10
	QualitySubstituted        Quality = 0x20
	QualityNonTopical         Quality = 0x40
	QualityInvalid            Quality = 0x80
)

var qualityNames = []flagName[Quality]{
	{QualityOverflow, "Overflow"},
	{QualityElapsedTimeInvalid, "ElapsedTimeInvalid"},
	{QualityBlocked, "Blocked"},
	{QualitySubstituted, "Substituted"},
	{QualityNonTopical, "NonTopical"},
	{QualityInvalid, "Invalid"},
}

func (q Quality) Test(bit Quality) bool       { return q&bit != 0 }
func (q Quality) With(bits ...Quality) Quality {
	for _, b := range bits {
		q |= b
	}
	return q
}
func (q Quality) IsGood() bool      { return q == 0 }
func (q Quality) String() string    { return formatFlagSet(q, "Quality", qualityNames, "is_good") }
func (q Quality) FlagString() string { return formatFlagString(q, qualityNames) }

// BinaryCounterQuality holds the quality bits of an integrated total.
type BinaryCounterQuality uint8

const (
	CounterQualityAdjusted BinaryCounterQuality = 0x20
	CounterQualityCarry    BinaryCounterQuality = 0x40
	CounterQualityInvalid  BinaryCounterQuality = 0x80
)

var counterQualityNames = []flagName[BinaryCounterQuality]{
	{CounterQualityAdjusted, "Adjusted"},
	{CounterQualityCarry, "Carry"},
	{CounterQualityInvalid, "Invalid"},
}

func (q BinaryCounterQuality) Test(bit BinaryCounterQuality) bool { return q&bit != 0 }
func (q BinaryCounterQuality) With(bits ...BinaryCounterQuality) BinaryCounterQuality {
	for _, b := range bits {
		q |= b
	}
	return q
}
func (q BinaryCounterQuality) IsGood() bool { return q == 0 }
func (q BinaryCounterQuality) String() string {
	return formatFlagSet(q, "BinaryCounterQuality", counterQualityNames, "is_good")
}
func (q BinaryCounterQuality) FlagString() string { return formatFlagString(q, counterQualityNames) }

// StartEvents holds the start events of protection equipment.
type StartEvents uint8

const (
	StartEventGeneral          StartEvents = 0x01
	StartEventPhaseL1          StartEvents = 0x02
	StartEventPhaseL2          StartEvents = 0x04
	StartEventPhaseL3          StartEvents = 0x08
	StartEventInEarthCurrent   StartEvents = 0x10
	StartEventReverseDirection StartEvents = 0x20
)

var startEventNames = []flagName[StartEvents]{
	{StartEventGeneral, "General"},
	{StartEventPhaseL1, "PhaseL1"},
	{StartEventPhaseL2, "PhaseL2"},
	{StartEventPhaseL3, "PhaseL3"},
	{StartEventInEarthCurrent, "InEarthCurrent"},
	{StartEventReverseDirection, "ReverseDirection"},
}

func (e StartEvents) Test(bit StartEvents) bool { return e&bit != 0 }
func (e StartEvents) With(bits ...StartEvents) StartEvents {
	for _, b := range bits {
		e |= b
	}
	return e
}
func (e StartEvents) IsNone() bool      { return e == 0 }
func (e StartEvents) String() string    { return formatFlagSet(e, "StartEvents", startEventNames, "") }
func (e StartEvents) FlagString() string { return formatFlagString(e, startEventNames) }

// OutputCircuits holds the output circuit information of protection equipment.
type OutputCircuits uint8

const (
	OutputCircuitGeneral OutputCircuits = 0x01
	OutputCircuitPhaseL1 OutputCircuits = 0x02
	OutputCircuitPhaseL2 OutputCircuits = 0x04
	OutputCircuitPhaseL3 OutputCircuits = 0x08
)

var outputCircuitNames = []flagName[OutputCircuits]{
	{OutputCircuitGeneral, "General"},
	{OutputCircuitPhaseL1, "PhaseL1"},
	{OutputCircuitPhaseL2, "PhaseL2"},
	{OutputCircuitPhaseL3, "PhaseL3"},
}

func (o OutputCircuits) Test(bit OutputCircuits) bool { return o&bit != 0 }
func (o OutputCircuits) With(bits ...OutputCircuits) OutputCircuits {
	for _, b := range bits {
		o |= b
	}
	return o
}
func (o OutputCircuits) IsNone() bool   { return o == 0 }
func (o OutputCircuits) String() string { return formatFlagSet(o, "OutputCircuits", outputCircuitNames, "") }
func (o OutputCircuits) FlagString() string { return formatFlagString(o, outputCircuitNames) }

// Debug selects which components emit verbose logs.
type Debug uint8

const (
	DebugServer     Debug = 0x01
	DebugClient     Debug = 0x02
	DebugConnection Debug = 0x04
	DebugStation    Debug = 0x08
	DebugPoint      Debug = 0x10
	DebugMessage    Debug = 0x20
	DebugCallback   Debug = 0x40
	DebugGate       Debug = 0x80
)

var debugNames = []flagName[Debug]{
	{DebugServer, "Server"},
	{DebugClient, "Client"},
	{DebugConnection, "Connection"},
	{DebugStation, "Station"},
	{DebugPoint, "Point"},
	{DebugMessage, "Message"},
	{DebugCallback, "Callback"},
	{DebugGate, "Gate"},
}

func (d Debug) Test(bit Debug) bool { return d&bit != 0 }
func (d Debug) With(bits ...Debug) Debug {
	for _, b := range bits {
		d |= b
	}
	return d
}
func (d Debug) IsNone() bool      { return d == 0 }
func (d Debug) String() string    { return formatFlagSet(d, "Debug", debugNames, "is_none") }
func (d Debug) FlagString() string { return formatFlagString(d, debugNames) }

var debugMode atomic.Uint32

// SetDebugMode replaces the process-wide debug flag set.
func SetDebugMode(mode Debug) { debugMode.Store(uint32(mode)) }

// DebugMode returns the process-wide debug flag set.
func DebugMode() Debug { return Debug(debugMode.Load()) }

func debugEnabled(bit Debug) bool { return DebugMode().Test(bit) }
