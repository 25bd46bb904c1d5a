package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"

	"github.com/lunchbox-market/order-composer/internal/restday"
)

var (
	errVersionShown       = errors.New("version shown")
	unknownCommandPattern = regexp.MustCompile(`unknown command "([^"]+)"`)
)

// Dependencies are the outside services commands reach for.
type Dependencies struct {
	// RestDays builds a rest-day source for a backend base URL.
	RestDays func(baseURL string) restday.Fetcher
	Version  string
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string, deps Dependencies, stdout io.Writer, stderr io.Writer) int {
	cmd := NewRootCommand(deps)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil || errors.Is(err, errVersionShown) {
		return 0
	}

	if matches := unknownCommandPattern.FindStringSubmatch(err.Error()); len(matches) > 1 {
		_, _ = fmt.Fprintf(stderr, "No such command '%s'\n", matches[1])
		return 2
	}

	if msg := err.Error(); msg != "" {
		_, _ = fmt.Fprintln(stderr, msg)
	}
	return 1
}
