// pkg/core/run.go
package core

import "time"

// Run is one scoring session of a single vehicle over a course.
type Run struct {
	ID         string         `json:"id"`
	CourseName string         `json:"courseName"`
	Vehicle    string         `json:"vehicle"`
	StartTime  time.Time      `json:"startTime"`
	Gates      []GateSnapshot `json:"gates"`
}

// RunSummary is the final outcome of a run.
type RunSummary struct {
	Run     Run            `json:"run"`
	EndTime time.Time      `json:"endTime"`
	Ticks   uint64         `json:"ticks"`
	Crossed int            `json:"crossed"`
	Invalid int            `json:"invalid"`
	Gates   []GateSnapshot `json:"gates"`
}

// UploadMetadata contains the metadata sent along with an exported score file.
type UploadMetadata struct {
	CourseName  string
	Vehicle     string
	RunID       string
	RunDuration float64 // seconds
	Crossed     int
	Invalid     int
}
