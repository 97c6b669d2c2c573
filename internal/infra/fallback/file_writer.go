package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"study-session-service/internal/domain"
)

// FileWriter stores undelivered reports as participant_<id>_<stage>.json.
type FileWriter struct {
	dir string
}

func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{dir: dir}
}

func (w *FileWriter) Write(_ context.Context, report domain.Report) (string, error) {
	name := domain.FallbackFilename(report.ParticipantID, report.Stage)
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return name, fmt.Errorf("marshal report: %w", err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return name, fmt.Errorf("create fallback dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, filepath.Base(name)), data, 0o644); err != nil {
		return name, fmt.Errorf("write fallback file: %w", err)
	}
	return name, nil
}
