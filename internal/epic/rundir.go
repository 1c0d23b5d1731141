package epic

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const (
	missionFile      = "MISSION"
	currentStateFile = "CURRENT_STATE"
	memoryFile       = "MEMORY"
	dirPerm          = 0o755
	filePerm         = 0o644
)

// runDir owns one epic run's persisted documents (spec §4.11 step 1, §6
// "Epic runs"): MISSION is written once, CURRENT_STATE is rewritten each
// round, MEMORY is appended to each round.
type runDir struct {
	fs   afero.Fs
	path string
}

func newRunDir(fs afero.Fs, path string) *runDir {
	return &runDir{fs: fs, path: path}
}

func (d *runDir) writeMission(mission string, scope []string) error {
	if err := d.fs.MkdirAll(d.path, dirPerm); err != nil {
		return fmt.Errorf("mkdir run directory: %w", err)
	}
	body := mission
	if len(scope) > 0 {
		body += "\n\nScope:\n- " + strings.Join(scope, "\n- ")
	}
	return afero.WriteFile(d.fs, d.file(missionFile), []byte(body), filePerm)
}

func (d *runDir) readCurrentState() (string, error) {
	b, err := afero.ReadFile(d.fs, d.file(currentStateFile))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *runDir) writeCurrentState(summary string) error {
	return afero.WriteFile(d.fs, d.file(currentStateFile), []byte(summary), filePerm)
}

func (d *runDir) appendMemory(round, taskCount int, summaries []taskSummary, verdict Verdict) error {
	var b strings.Builder
	fmt.Fprintf(&b, "## Round %d (%s)\n", round, time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "tasks: %d, verdict: %s\n", taskCount, verdict)
	for _, s := range summaries {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", s.Outcome, s.Title, oneLine(s.Summary))
	}
	b.WriteString("\n")

	existing, _ := afero.ReadFile(d.fs, d.file(memoryFile))
	return afero.WriteFile(d.fs, d.file(memoryFile), append(existing, []byte(b.String())...), filePerm)
}

func (d *runDir) file(name string) string {
	return filepath.Join(d.path, name)
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	const maxLen = 200
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
