package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dpdplabs/pii-scanner/internal/config"
	"github.com/dpdplabs/pii-scanner/internal/logger"
	"github.com/dpdplabs/pii-scanner/internal/privacy"
	"github.com/dpdplabs/pii-scanner/internal/report"
	"github.com/dpdplabs/pii-scanner/internal/rules"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Detector yields raw candidates for one text unit. privacy.Detector
// satisfies it; so would any external statistical detector.
type Detector interface {
	Detect(text string) []rules.Candidate
}

// Scanner walks the configured input paths and evaluates every detected
// candidate against the resolved rule set. The rule set is read-only for
// the whole run and shared across workers.
type Scanner struct {
	cfg      *config.Config
	detector Detector
	ruleSet  *rules.ResolvedRuleSet
	logger   *logger.Logger
}

// New creates a scanner over an already-resolved rule set.
func New(cfg *config.Config, detector Detector, ruleSet *rules.ResolvedRuleSet, log *logger.Logger) *Scanner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Scanner{cfg: cfg, detector: detector, ruleSet: ruleSet, logger: log}
}

// Environment reports the rule set's active environment name.
func (s *Scanner) Environment() string { return s.ruleSet.Environment }

// Region reports the rule set's region.
func (s *Scanner) Region() string { return s.ruleSet.Region }

// TextResult holds the outcome of evaluating one text unit.
type TextResult struct {
	Findings   []report.Finding
	Rejections map[string]int
}

// ScanText runs detection, post-processing, and rule evaluation over one
// text unit. Safe for concurrent use.
func (s *Scanner) ScanText(text, filePath, fileHash string) TextResult {
	candidates := s.detector.Detect(text)
	candidates = privacy.PostProcess(candidates, text)

	result := TextResult{Rejections: make(map[string]int)}
	for _, candidate := range candidates {
		decision := rules.Evaluate(candidate, s.ruleSet, text)
		if decision.Reason != rules.Accepted {
			result.Rejections[decision.Reason.String()]++
			s.logger.Debug("Candidate rejected",
				zap.String("entity_type", candidate.EntityType),
				zap.String("reason", decision.Reason.String()),
				zap.String("file", filePath),
			)
			continue
		}

		accepted := candidate
		accepted.Score = decision.Score
		result.Findings = append(result.Findings, report.BuildFinding(accepted, text, filePath, fileHash, s.cfg.Output))
	}
	return result
}

// Run executes the full scan lifecycle: discover files, scan them on a
// worker pool, and assemble the report.
func (s *Scanner) Run(ctx context.Context) (*report.Report, error) {
	started := time.Now().UTC()

	rep := &report.Report{
		ScannerName:    "pii-scanner",
		ScannerVersion: "1.0.0",
		ScanID:         uuid.NewString(),
		Region:         s.ruleSet.Region,
		Environment:    s.ruleSet.Environment,
		RuleFiles:      s.ruleSet.FilesLoaded,
		StartedAt:      started,
		Stats:          report.Stats{Rejections: make(map[string]int)},
	}
	log := s.logger.WithScanID(rep.ScanID)

	paths, skipped, err := s.discoverFiles()
	if err != nil {
		return nil, err
	}
	rep.Files = append(rep.Files, skipped...)
	rep.Stats.FilesSkipped = len(skipped)

	jobs := make(chan string)
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	workers := s.cfg.Scan.Workers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				fileReport, findings, rejections := s.scanFile(path)

				mu.Lock()
				rep.Files = append(rep.Files, fileReport)
				switch fileReport.Status {
				case "failed":
					rep.Stats.FilesFailed++
				case "scanned":
					rep.Stats.FilesScanned++
				}
				rep.Findings = append(rep.Findings, findings...)
				for reason, count := range rejections {
					rep.Stats.Rejections[reason] += count
				}
				mu.Unlock()
			}
		}()
	}

	for _, path := range paths {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		case jobs <- path:
		}
	}
	close(jobs)
	wg.Wait()

	report.SortFindings(rep.Findings)
	rep.Stats.TotalFindings = len(rep.Findings)
	rep.CompletedAt = time.Now().UTC()

	log.Info("Scan complete",
		zap.Int("files_scanned", rep.Stats.FilesScanned),
		zap.Int("files_skipped", rep.Stats.FilesSkipped),
		zap.Int("files_failed", rep.Stats.FilesFailed),
		zap.Int("findings", rep.Stats.TotalFindings),
	)
	return rep, nil
}

// scanFile reads and scans one file.
func (s *Scanner) scanFile(path string) (report.FileReport, []report.Finding, map[string]int) {
	data, err := os.ReadFile(path)
	if err != nil {
		return report.FileReport{FilePath: path, Status: "failed", Error: err.Error()}, nil, nil
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return report.FileReport{FilePath: path, Status: "scanned"}, nil, nil
	}

	fileHash := ""
	if s.cfg.Output.IncludeFileHash {
		sum := sha256.Sum256(data)
		fileHash = hex.EncodeToString(sum[:])
	}

	result := s.ScanText(text, path, fileHash)
	return report.FileReport{
		FilePath:      path,
		Status:        "scanned",
		FindingsCount: len(result.Findings),
	}, result.Findings, result.Rejections
}

// discoverFiles walks the input paths applying extension, directory, glob,
// and size filters. Oversized files are reported as skipped.
func (s *Scanner) discoverFiles() ([]string, []report.FileReport, error) {
	scanCfg := s.cfg.Scan
	maxSize := int64(scanCfg.MaxFileSizeMB) * 1024 * 1024
	outputPath, _ := filepath.Abs(s.cfg.Output.Path)

	excludeDirs := make(map[string]struct{}, len(scanCfg.ExcludeDirs))
	for _, dir := range scanCfg.ExcludeDirs {
		excludeDirs[dir] = struct{}{}
	}

	var (
		files   []string
		skipped []report.FileReport
	)

	consider := func(path string, info fs.FileInfo) {
		if abs, err := filepath.Abs(path); err == nil && abs == outputPath {
			return
		}
		if !s.includeFile(path) {
			return
		}
		if info.Size() > maxSize {
			skipped = append(skipped, report.FileReport{
				FilePath: path,
				Status:   "skipped",
				Reason:   fmt.Sprintf("file larger than max_file_size_mb (%d)", scanCfg.MaxFileSizeMB),
			})
			return
		}
		files = append(files, path)
	}

	for _, root := range scanCfg.InputPaths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to stat input path %s: %w", root, err)
		}
		if !info.IsDir() {
			consider(root, info)
			continue
		}

		err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				if path == root {
					return nil
				}
				if _, excluded := excludeDirs[entry.Name()]; excluded {
					return fs.SkipDir
				}
				if !scanCfg.Recursive {
					return fs.SkipDir
				}
				return nil
			}
			info, err := entry.Info()
			if err != nil {
				return err
			}
			consider(path, info)
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to walk input path %s: %w", root, err)
		}
	}

	return files, skipped, nil
}

// includeFile applies extension and glob filters.
func (s *Scanner) includeFile(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range s.cfg.Scan.ExcludeFileGlobs {
		if ok, _ := filepath.Match(pattern, base); ok {
			return false
		}
	}

	if len(s.cfg.Scan.IncludeExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range s.cfg.Scan.IncludeExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}
