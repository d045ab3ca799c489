// Package v1 contains the v1 export format for navscore run results.
package v1

import "time"

// FormatVersion is written to every export so readers can pick a decoder.
const FormatVersion = 1

// Export is the root JSON structure for v1 format
type Export struct {
	FormatVersion   int          `json:"formatVersion"`
	RunID           string       `json:"runId"`
	CourseName      string       `json:"courseName"`
	Vehicle         string       `json:"vehicle"`
	StartTime       time.Time    `json:"startTime"`
	EndTime         time.Time    `json:"endTime"`
	DurationSeconds float64      `json:"durationSeconds"`
	Ticks           uint64       `json:"ticks"`
	Crossed         int          `json:"crossed"`
	Invalid         int          `json:"invalid"`
	Gates           []Gate       `json:"gates"`
	Transitions     []Transition `json:"transitions"`
}

// Gate is the final state of a gate.
// Positions are [x, y, z]; Heading is in degrees and null when the markers coincide.
type Gate struct {
	Index       int        `json:"index"`
	Name        string     `json:"name"`
	LeftMarker  string     `json:"leftMarker"`
	RightMarker string     `json:"rightMarker"`
	Left        [3]float64 `json:"left"`
	Right       [3]float64 `json:"right"`
	Center      [3]float64 `json:"center"`
	Heading     *float64   `json:"heading"`
	Width       float64    `json:"width"`
	State       string     `json:"state"`
	// Tick of the transition into the final state, 0 if the gate never left its start state.
	DecidedAt uint64 `json:"decidedAt"`
}

// Transition is one gate state change.
type Transition struct {
	Tick     uint64     `json:"tick"`
	Time     time.Time  `json:"time"`
	Gate     int        `json:"gate"`
	From     string     `json:"from"`
	To       string     `json:"to"`
	Position [3]float64 `json:"position"`
}
