package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dpdplabs/pii-scanner/internal/config"
	"github.com/dpdplabs/pii-scanner/internal/rules"
)

// Finding is one accepted PII occurrence.
type Finding struct {
	FilePath   string  `json:"file_path,omitempty"`
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet,omitempty"`
	FileHash   string  `json:"file_hash,omitempty"`
}

// FileReport records the scan outcome for one file.
type FileReport struct {
	FilePath      string `json:"file_path"`
	Status        string `json:"status"` // scanned, skipped, or failed
	Reason        string `json:"reason,omitempty"`
	Error         string `json:"error,omitempty"`
	FindingsCount int    `json:"findings_count"`
}

// Stats summarizes a scan run. Rejections counts evaluator decisions by
// reason, for audit.
type Stats struct {
	FilesScanned  int            `json:"files_scanned"`
	FilesSkipped  int            `json:"files_skipped"`
	FilesFailed   int            `json:"files_failed"`
	TotalFindings int            `json:"total_findings"`
	Rejections    map[string]int `json:"rejections,omitempty"`
}

// Report is the full scan report payload.
type Report struct {
	ScannerName    string       `json:"scanner_name"`
	ScannerVersion string       `json:"scanner_version"`
	ScanID         string       `json:"scan_id"`
	Region         string       `json:"region,omitempty"`
	Environment    string       `json:"environment,omitempty"`
	RuleFiles      []string     `json:"rule_files,omitempty"`
	StartedAt      time.Time    `json:"scan_started_at"`
	CompletedAt    time.Time    `json:"scan_completed_at"`
	Stats          Stats        `json:"stats"`
	Findings       []Finding    `json:"findings"`
	Files          []FileReport `json:"files,omitempty"`
}

// BuildFinding turns an accepted candidate into a report finding, attaching
// a snippet of surrounding text when configured.
func BuildFinding(c rules.Candidate, text, filePath, fileHash string, cfg config.OutputConfig) Finding {
	finding := Finding{
		FilePath:   filePath,
		EntityType: c.EntityType,
		Start:      c.Start,
		End:        c.End,
		Score:      c.Score,
	}

	if cfg.IncludeTextSnippet {
		before, after := rules.ContextWindow(text, c.Start, c.End, cfg.SnippetContextChars)
		finding.Snippet = before + c.Matched + after
	}
	if cfg.IncludeFileHash {
		finding.FileHash = fileHash
	}
	return finding
}

// SortFindings orders findings by file, position, then descending score.
func SortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].FilePath != findings[j].FilePath {
			return findings[i].FilePath < findings[j].FilePath
		}
		if findings[i].Start != findings[j].Start {
			return findings[i].Start < findings[j].Start
		}
		if findings[i].End != findings[j].End {
			return findings[i].End < findings[j].End
		}
		return findings[i].Score > findings[j].Score
	})
}

// Write serializes the report to disk, creating parent directories.
func Write(path string, r *Report, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(r, "", "  ")
	} else {
		data, err = json.Marshal(r)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
