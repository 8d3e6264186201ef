package codegen

import (
	"os"
	"path/filepath"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// ApplyResult reports which paths landed and which failed.
type ApplyResult struct {
	Written []string `json:"written"`
	Failed  []string `json:"failed,omitempty"`
}

// Apply stages every artifact into a temporary sibling directory, then
// renames the files individually into place. A per-file failure aborts
// further writes and reports the split. Files outside the artifact set
// are never touched.
func Apply(projectRoot string, artifacts []Artifact) (ApplyResult, error) {
	var result ApplyResult

	staging, err := os.MkdirTemp(projectRoot, ".cwa-staging-")
	if err != nil {
		return result, cwerr.Wrap(cwerr.Internal, err, "creating staging directory")
	}
	defer os.RemoveAll(staging)

	// Stage everything first: a generation bug fails before any real
	// file moves.
	for _, artifact := range artifacts {
		staged := filepath.Join(staging, artifact.Path)
		if err := os.MkdirAll(filepath.Dir(staged), 0o755); err != nil {
			return result, cwerr.Wrap(cwerr.Internal, err, "staging %s", artifact.Path)
		}
		if err := os.WriteFile(staged, []byte(artifact.Content), 0o644); err != nil {
			return result, cwerr.Wrap(cwerr.Internal, err, "staging %s", artifact.Path)
		}
	}

	// Rename into place, one file at a time. First failure stops the
	// apply; earlier renames remain committed.
	for i, artifact := range artifacts {
		target := filepath.Join(projectRoot, artifact.Path)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return abortApply(result, artifacts, i, err)
		}
		if err := os.Rename(filepath.Join(staging, artifact.Path), target); err != nil {
			return abortApply(result, artifacts, i, err)
		}
		result.Written = append(result.Written, artifact.Path)
	}
	return result, nil
}

func abortApply(result ApplyResult, artifacts []Artifact, failedAt int, err error) (ApplyResult, error) {
	for _, remaining := range artifacts[failedAt:] {
		result.Failed = append(result.Failed, remaining.Path)
	}
	return result, cwerr.Wrap(cwerr.Internal, err,
		"applying %s (%d written, %d failed)", artifacts[failedAt].Path, len(result.Written), len(result.Failed))
}
