package destination

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autorunner/pkg/herrors"
)

const defaultPreflightTimeout = 10 * time.Second

// FullDevBinaries is the binary set the full-dev profile must find on PATH
// inside the managed container (spec §4.F).
var FullDevBinaries = []string{"codex", "opencode", "python3", "git", "rg", "bash", "node", "pnpm"}

// RequiredMounts is the mount set the full-dev profile requires on the
// host, relative to $HOME (spec §4.F).
var RequiredMounts = []string{".codex", ".local/share/opencode"}

// PreflightResult reports which binaries/mounts a full-dev preflight found
// missing, if any.
type PreflightResult struct {
	MissingBinaries []string
	MissingMounts   []string
}

// OK reports whether the preflight found nothing missing.
func (r PreflightResult) OK() bool {
	return len(r.MissingBinaries) == 0 && len(r.MissingMounts) == 0
}

// PreflightFullDev verifies the full-dev profile's binary and mount
// requirements against a running DockerExec. A failure is reported to the
// caller as herrors.DestinationUnavailable with a structured reason listing
// exactly what was missing — callers must never silently fall back to
// local execution on preflight failure (spec §4.F).
func PreflightFullDev(ctx context.Context, exec Executor, homeDir string) (PreflightResult, error) {
	var result PreflightResult

	for _, bin := range FullDevBinaries {
		res, err := exec.Run(ctx, []string{"sh", "-c", "command -v " + bin}, Opts{Timeout: defaultPreflightTimeout})
		if err != nil || res.ExitCode != 0 {
			result.MissingBinaries = append(result.MissingBinaries, bin)
		}
	}

	for _, rel := range RequiredMounts {
		path := filepath.Join(homeDir, rel)
		if _, err := os.Stat(path); err != nil {
			result.MissingMounts = append(result.MissingMounts, path)
		}
	}

	if !result.OK() {
		return result, herrors.New(herrors.DestinationUnavailable, "", "full-dev preflight failed: %s", describeMissing(result))
	}
	return result, nil
}

// FullDevMounts builds the MountSpec list for the full-dev profile relative
// to homeDir (spec §4.F: "mounts ${HOME}/.codex and
// ${HOME}/.local/share/opencode").
func FullDevMounts(homeDir string) []MountSpec {
	mounts := make([]MountSpec, 0, len(RequiredMounts))
	for _, rel := range RequiredMounts {
		host := filepath.Join(homeDir, rel)
		mounts = append(mounts, MountSpec{Source: host, Target: filepath.Join("/root", rel)})
	}
	return mounts
}

// describeMissing renders a one-line human summary of a preflight failure.
func describeMissing(r PreflightResult) string {
	var parts []string
	if len(r.MissingBinaries) > 0 {
		parts = append(parts, "binaries: "+strings.Join(r.MissingBinaries, ", "))
	}
	if len(r.MissingMounts) > 0 {
		parts = append(parts, "mounts: "+strings.Join(r.MissingMounts, ", "))
	}
	return strings.Join(parts, "; ")
}
