package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/duailibe/monday-source/internal/monday"
)

type Dependencies struct {
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
	Now       func() time.Time
	NewClient func(token string, timeout time.Duration, opts ...monday.ClientOption) monday.API
	NewRunID  func() string
}

type GlobalOptions struct {
	JSON     bool          `help:"output JSON"`
	Quiet    bool          `short:"q" help:"only log warnings and errors"`
	Verbose  bool          `short:"v" help:"enable debug logging"`
	Timeout  time.Duration `help:"API request timeout" default:"30s"`
	APIToken string        `name:"api-token" help:"monday.com API token (overrides config and env)"`
	Config   string        `short:"c" help:"connector config file (YAML or JSON)" type:"path"`
	Manifest string        `help:"manifest with stream schemas (defaults to the embedded one)" type:"path"`
}

type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit %d", e.Code)
	}
	return e.Err.Error()
}

func (e ExitError) Unwrap() error { return e.Err }

func exitError(code int, err error) error {
	if err == nil {
		return ExitError{Code: code, Err: errors.New("unknown error")}
	}
	return ExitError{Code: code, Err: err}
}
