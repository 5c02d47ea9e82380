// Command httpclient issues single instrumented requests and exposes the
// resulting counters.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Exit codes.
const (
	exitPresent = 0
	exitError   = 1
	exitAbsent  = 2
)

// errAbsent is returned by commands whose request produced no result.
var errAbsent = errors.New("absent result")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	return exitCode(cmd.Execute(), stderr)
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return exitPresent
	case errors.Is(err, errAbsent):
		fmt.Fprintln(stderr, err)
		return exitAbsent
	default:
		fmt.Fprintln(stderr, "error:", err)
		return exitError
	}
}
