// Package deps reports whether the external tools the pipeline shells out to
// can be executed.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"kthgpt/internal/config"
)

// Requirement names an external binary. Command may be a bare name resolved
// from PATH or a path used as-is; Default applies when Command is blank.
type Requirement struct {
	Name        string
	Command     string
	Default     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency. Command is the resolved
// path when the binary was found on PATH.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Tools lists the binaries the download, probe, and transcription steps run.
func Tools(cfg *config.Config) []Requirement {
	transcriber := ""
	if len(cfg.Transcription.Command) > 0 {
		transcriber = cfg.Transcription.Command[0]
	}
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Media.FFmpegBinary, Default: "ffmpeg", Description: "Required for lecture downloads"},
		{Name: "FFprobe", Command: cfg.Media.FFprobeBinary, Default: "ffprobe", Description: "Required to verify downloaded recordings"},
		{Name: "Transcriber", Command: transcriber, Description: "Required for lecture transcription"},
	}
}

// CheckAll evaluates every requirement in order.
func CheckAll(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, Check(req))
	}
	return results
}

// Check evaluates a single requirement.
func Check(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	binary := strings.TrimSpace(req.Command)
	if binary == "" {
		binary = strings.TrimSpace(req.Default)
	}
	status.Command = binary
	if binary == "" {
		status.Detail = "command not configured"
		return status
	}

	if strings.ContainsRune(binary, os.PathSeparator) {
		info, err := os.Stat(binary)
		switch {
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", binary)
		case !isExecutable(info):
			status.Detail = fmt.Sprintf("binary %q is not executable", binary)
		default:
			status.Available = true
		}
		return status
	}

	resolved, err := exec.LookPath(binary)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", binary)
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
