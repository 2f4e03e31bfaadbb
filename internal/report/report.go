// Package report renders one recorded run as a JSON or text document.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sparkify/dwh/internal/config"
	"github.com/sparkify/dwh/internal/history"
)

// RunReport is the exported record of a run.
type RunReport struct {
	Version     string         `json:"version"`
	GeneratedAt time.Time      `json:"generated_at"`
	Cluster     ClusterSummary `json:"cluster"`
	Run         history.Run    `json:"run"`
	Summary     StepSummary    `json:"summary"`
	Steps       []history.Step `json:"steps"`
	NextSteps   []string       `json:"next_steps,omitempty"`
}

// ClusterSummary describes the warehouse the run targeted.
type ClusterSummary struct {
	Identifier string `json:"identifier"`
	NodeType   string `json:"node_type"`
	NumNodes   int    `json:"num_nodes"`
	Host       string `json:"host,omitempty"`
	Database   string `json:"database"`
}

// StepSummary totals the steps by kind and outcome.
type StepSummary struct {
	Statements int            `json:"statements"`
	Failed     int            `json:"failed"`
	ByKind     map[string]int `json:"by_kind"`
	Elapsed    time.Duration  `json:"elapsed_ns"`
}

// Build assembles a report for run from its steps.
func Build(cfg *config.Config, run history.Run, steps []history.Step) *RunReport {
	sum := StepSummary{ByKind: map[string]int{}}
	var nextSteps []string
	for _, s := range steps {
		sum.Statements++
		sum.ByKind[s.Kind]++
		sum.Elapsed += s.Duration
		if s.Status != history.StepOK {
			sum.Failed++
			nextSteps = append(nextSteps, fmt.Sprintf("%s %s failed: %s", s.Kind, s.Table, s.Error))
		}
	}

	switch {
	case run.Status == history.StatusFailed && sum.Failed == 0:
		nextSteps = append(nextSteps, "Run failed before executing a statement: "+run.Error)
	case run.Status == history.StatusRunning:
		nextSteps = append(nextSteps, "Run has not finished; it may still be in progress or the process was killed")
	}
	if sum.ByKind["check"] > 0 && sum.Failed > 0 {
		nextSteps = append(nextSteps, "Inspect the failing tables with 'dwh verify' before serving queries")
	}

	return &RunReport{
		Version:     "1",
		GeneratedAt: time.Now(),
		Cluster: ClusterSummary{
			Identifier: cfg.DWH.ClusterIdentifier,
			NodeType:   cfg.DWH.NodeType,
			NumNodes:   cfg.DWH.NumNodes,
			Host:       cfg.Cluster.Host,
			Database:   cfg.Cluster.DBName,
		},
		Run:       run,
		Summary:   sum,
		Steps:     steps,
		NextSteps: nextSteps,
	}
}

// Write saves the report as JSON when path ends in .json and as text otherwise.
func Write(r *RunReport, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return WriteJSON(r, path)
	}
	return WriteText(r, path)
}

// WriteJSON writes the report as JSON.
func WriteJSON(r *RunReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON reads a report from a JSON file.
func ReadJSON(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	r := &RunReport{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return r, nil
}

// WriteText writes the report as human-readable text.
func WriteText(r *RunReport, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, []byte(FormatText(r)), 0o644)
}

// FormatText renders the report as human-readable text.
func FormatText(r *RunReport) string {
	var b strings.Builder

	b.WriteString("=== dwh Run Report ===\n")
	b.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	b.WriteString("Cluster:\n")
	b.WriteString(fmt.Sprintf("  Identifier: %s\n", r.Cluster.Identifier))
	b.WriteString(fmt.Sprintf("  Nodes:      %d x %s\n", r.Cluster.NumNodes, r.Cluster.NodeType))
	if r.Cluster.Host != "" {
		b.WriteString(fmt.Sprintf("  Host:       %s\n", r.Cluster.Host))
	}
	b.WriteString(fmt.Sprintf("  Database:   %s\n\n", r.Cluster.Database))

	b.WriteString("Run:\n")
	b.WriteString(fmt.Sprintf("  ID:       %s\n", r.Run.ID))
	b.WriteString(fmt.Sprintf("  Command:  %s\n", r.Run.Command))
	b.WriteString(fmt.Sprintf("  Status:   %s\n", r.Run.Status))
	b.WriteString(fmt.Sprintf("  Started:  %s\n", r.Run.StartedAt.Format(time.RFC3339)))
	if d := r.Run.Duration(); d > 0 {
		b.WriteString(fmt.Sprintf("  Duration: %s\n", d.Round(time.Millisecond)))
	}
	if r.Run.Error != "" {
		b.WriteString(fmt.Sprintf("  Error:    %s\n", r.Run.Error))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Statements: %d (%d failed)\n", r.Summary.Statements, r.Summary.Failed))
	for _, s := range r.Steps {
		status := "OK"
		if s.Status != history.StepOK {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("  [%s] %3d %-6s %-15s %s\n", status, s.Seq, s.Kind, s.Table, s.Duration.Round(time.Millisecond)))
	}

	if len(r.NextSteps) > 0 {
		b.WriteString("\nNext Steps:\n")
		for i, s := range r.NextSteps {
			b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, s))
		}
	}

	return b.String()
}
