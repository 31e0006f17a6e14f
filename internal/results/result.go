// Package results keeps finished Monte Carlo runs: the most recent ones in
// memory and a bounded archive on disk.
package results

import (
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/star/impactsim/internal/montecarlo"
	"github.com/star/impactsim/internal/sensitivity"
)

// Result is a finished run.
type Result struct {
	ID         string    `json:"id" msgpack:"id"`
	Scenario   string    `json:"scenario" msgpack:"scenario"`
	State      string    `json:"state" msgpack:"state"`
	Completed  int       `json:"completed" msgpack:"completed"`
	Skipped    int       `json:"skipped" msgpack:"skipped"`
	Total      int       `json:"total" msgpack:"total"`
	Workers    int       `json:"workers" msgpack:"workers"`
	StartedAt  time.Time `json:"started_at" msgpack:"started_at"`
	FinishedAt time.Time `json:"finished_at" msgpack:"finished_at"`

	Reference *sensitivity.Result `json:"reference,omitempty" msgpack:"reference"`
	Grid      *montecarlo.Grid    `json:"-" msgpack:"grid"`
}

// Summary is the listing view of a result.
type Summary struct {
	ID         string    `json:"id"`
	Scenario   string    `json:"scenario,omitempty"`
	State      string    `json:"state,omitempty"`
	Completed  int       `json:"completed,omitempty"`
	Total      int       `json:"total,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
	// Archived is true when the summary was read from a file name only.
	Archived bool `json:"archived,omitempty"`
}

// Summary returns the listing view of r.
func (r *Result) Summary() Summary {
	return Summary{
		ID:         r.ID,
		Scenario:   r.Scenario,
		State:      r.State,
		Completed:  r.Completed,
		Total:      r.Total,
		FinishedAt: r.FinishedAt,
	}
}

// Encode writes r as zstd-compressed msgpack.
func Encode(w io.Writer, r *Result) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	defer zw.Close()

	if err := msgpack.NewEncoder(zw).Encode(r); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close zstd writer: %w", err)
	}
	return nil
}

// Decode reads a result written by Encode.
func Decode(r io.Reader) (*Result, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	var res Result
	if err := msgpack.NewDecoder(zr).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &res, nil
}
