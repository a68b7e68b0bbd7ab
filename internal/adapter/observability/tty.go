package observability

import (
	"os"

	"golang.org/x/term"
)

// IsTTY checks if the given file descriptor is a terminal. This is useful for
// detecting whether the application is running in an interactive environment
// (an operator's terminal) or a non-interactive one (systemd unit, container,
// piped output).
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// DetectFormat picks the log format for the current environment: human-readable
// lines when stderr is a terminal, JSON lines otherwise (log collectors parse
// the JSON form).
func DetectFormat() LogFormat {
	if IsTTY(os.Stderr.Fd()) {
		return LogFormatHuman
	}
	return LogFormatJSON
}
