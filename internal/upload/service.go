package upload

import (
	"context"
	"io"
	"strings"
	"time"

	"finsight/internal/analysis"
	"finsight/internal/logging"
	"finsight/internal/store"

	"github.com/google/uuid"
)

// csvSuffix is the accepted file extension. Matching is case-insensitive:
// DATA.CSV from an uppercase-happy export is still a CSV.
const csvSuffix = ".csv"

// ValidFilename reports whether name is acceptable for submission.
func ValidFilename(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), csvSuffix)
}

// validationCode is the support code for locally rejected files.
const validationCode = "VAL001"

// Analyzer is the slice of the analysis client the service needs.
type Analyzer interface {
	Analyze(ctx context.Context, filename string, csvData io.Reader) (*analysis.Result, error)
}

// History persists completed analyses. Saving is best-effort: a storage
// failure is logged and never surfaces in the upload flow.
type History interface {
	Save(ctx context.Context, rec store.Record) error
}

// Service drives the state machine through a submission.
type Service struct {
	machine  *Machine
	analyzer Analyzer
	history  History
	timeout  time.Duration
}

// NewService wires the machine to the analyzer. history may be nil when no
// database is attached (tests). timeout bounds each submission.
func NewService(machine *Machine, analyzer Analyzer, history History, timeout time.Duration) *Service {
	return &Service{
		machine:  machine,
		analyzer: analyzer,
		history:  history,
		timeout:  timeout,
	}
}

// Machine exposes the state machine for rendering and reset.
func (s *Service) Machine() *Machine { return s.machine }

// Submit validates the file and, if acceptable, issues exactly one request
// to the analysis service. Every outcome except a concurrent-submission
// rejection becomes machine state; the returned error is non-nil only for
// Begin rejections, which the web layer maps to a conflict response.
func (s *Service) Submit(ctx context.Context, filename string, file io.Reader) (Snapshot, error) {
	logger := logging.FromContext(ctx)

	if !ValidFilename(filename) {
		s.machine.RejectFile(analysis.UserMessage{Message: analysis.MsgNotCSV, Code: validationCode})
		logger.Info("file rejected before submission", "filename", filename)
		return s.machine.Snapshot(), nil
	}

	subCtx, gen, err := s.machine.Begin(ctx)
	if err != nil {
		return s.machine.Snapshot(), err
	}

	subCtx, cancel := context.WithTimeout(subCtx, s.timeout)
	defer cancel()

	result, err := s.analyzer.Analyze(subCtx, filename, file)
	if err != nil {
		// Diagnostic detail stays in the logs; the user sees the fixed
		// generic message.
		logger.Error("analysis submission failed", "filename", filename, "error", err)
		s.machine.Fail(gen, analysis.MapError(err))
		return s.machine.Snapshot(), nil
	}

	if s.machine.Succeed(gen, result) {
		s.saveHistory(ctx, result)
		logger.Info("analysis complete",
			"filename", result.Filename,
			"detected_columns", len(result.DetectedColumns),
			"preview_rows", len(result.DataPreview),
		)
	}
	return s.machine.Snapshot(), nil
}

// Reset implements the "new file" action.
func (s *Service) Reset() {
	s.machine.Reset()
}

func (s *Service) saveHistory(ctx context.Context, result *analysis.Result) {
	if s.history == nil {
		return
	}

	rec := store.Record{
		ID:              uuid.New(),
		Filename:        result.Filename,
		UploadedAt:      time.Now().UTC(),
		DetectedColumns: result.DetectedColumns,
		KPIs:            result.KPIs,
		DataPreview:     result.DataPreview,
	}
	if err := s.history.Save(ctx, rec); err != nil {
		logging.FromContext(ctx).Error("failed to save analysis history",
			"analysis_id", rec.ID, "error", err)
	}
}
