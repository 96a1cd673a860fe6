package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// SystemActions provides OS-specific helpers triggered from the UI.
type SystemActions interface {
	OpenFolder(path string) error
}

func NewSystemActions() SystemActions {
	return systemActions{goos: runtime.GOOS, start: startCommandDetached}
}

type systemActions struct {
	goos  string
	start commandStarter
}

func (a systemActions) OpenFolder(path string) error {
	return openFolderForOS(a.goos, path, a.start)
}

type commandSpec struct {
	name string
	args []string
}

type commandStarter func(name string, args ...string) error

func openFolderForOS(goos, path string, start commandStarter) error {
	normalizedOS := strings.ToLower(strings.TrimSpace(goos))
	commands, err := openFolderCommandsForOS(normalizedOS, path)
	if err != nil {
		return err
	}

	slog.Info("opening folder", "goos", normalizedOS, "path", path, "attempts", len(commands))

	var errs []error
	for i, spec := range commands {
		err := start(spec.name, spec.args...)
		if err == nil {
			slog.Info("opened folder", "command", spec.name, "attempt", i+1)
			return nil
		}
		slog.Debug("open folder command failed", "command", spec.name, "args", spec.args, "attempt", i+1, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", spec.name, err))
	}

	joinedErr := errors.Join(errs...)
	slog.Warn("failed to open folder", "goos", normalizedOS, "error", joinedErr)

	return joinedErr
}

func openFolderCommandsForOS(goos, path string) ([]commandSpec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("folder path is empty")
	}

	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd":
		return []commandSpec{
			{name: "xdg-open", args: []string{path}},
			{name: "gio", args: []string{"open", path}},
		}, nil
	case "darwin":
		return []commandSpec{{name: "open", args: []string{path}}}, nil
	case "windows":
		return []commandSpec{{name: "explorer", args: []string{path}}}, nil
	default:
		return nil, fmt.Errorf("unsupported operating system: %s", goos)
	}
}

func startCommandDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...) // #nosec G204 -- fixed opener binaries, path is an argument

	return cmd.Start()
}
