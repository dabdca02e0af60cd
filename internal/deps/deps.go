// Package deps verifies the external binaries scoreframe shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"scoreframe/internal/config"
)

// Requirement defines an external binary scoreframe relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForConfig builds the requirement list for the configured binaries. ffprobe
// is only needed when output verification is enabled.
func ForConfig(cfg *config.Config) []Requirement {
	requirements := []Requirement{
		{
			Name:        "ffmpeg",
			Command:     cfg.Encode.FFmpegBinary,
			Description: "encodes rendered frames into MP4 output",
		},
	}
	requirements = append(requirements, Requirement{
		Name:        "ffprobe",
		Command:     cfg.Encode.FFprobeBinary,
		Description: "verifies encoded output containers",
		Optional:    !cfg.Encode.Verify,
	})
	return requirements
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of required requirements that are not
// available.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
