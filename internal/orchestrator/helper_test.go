package orchestrator

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"

	"deskshell/internal/environment"
	"deskshell/internal/process"
)

// helperService describes a service that re-executes the test binary in mode.
// Args may use run variables such as ${BACKEND_PORT}.
func helperService(name string, mode ...string) ServiceConfig {
	return ServiceConfig{
		Name:    name,
		Command: os.Args[0],
		Args:    append([]string{"-test.run=TestHelperProcess", "--"}, mode...),
		Policy: environment.ServicePolicy{
			Forward: environment.AllowList{"PATH"},
			Set: map[string]string{
				"GO_WANT_HELPER_PROCESS": "1",
				"BACKEND_URL":            "${BACKEND_URL}",
			},
		},
		ReadyTimeout: 10 * time.Second,
		StopTimeout:  2 * time.Second,
		Stop:         process.StopTree,
	}
}

// TestHelperProcess is not a real test. It's the body of the helper services.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "missing helper mode")
		os.Exit(2)
	}
	mode, rest := args[1], args[2:]

	switch mode {
	case "sleep":
		time.Sleep(time.Hour)
	case "exit":
		code, _ := strconv.Atoi(rest[0])
		fmt.Fprintln(os.Stderr, "backend failed to import settings")
		os.Exit(code)
	case "listen":
		l, err := net.Listen("tcp", "127.0.0.1:"+rest[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("backend url " + os.Getenv("BACKEND_URL"))
		_ = http.Serve(l, http.NotFoundHandler())
	default:
		fmt.Fprintf(os.Stderr, "unknown helper mode %q\n", mode)
		os.Exit(2)
	}
	os.Exit(0)
}
