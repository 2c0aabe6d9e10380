// Command healthcheck probes a changedetection-mcp deployment and prints a
// JSON report. It exits 1 when the deployment is unhealthy; a degraded
// deployment still exits 0 so containers stay up while monitoring flags the
// state.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/MrWong99/changedetection-mcp/internal/healthcheck"
	"github.com/MrWong99/changedetection-mcp/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	report := healthcheck.New(server.Version).Run(context.Background())

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck: encode report: %v\n", err)
		return 1
	}
	fmt.Println(string(out))

	if report.Status == healthcheck.StatusUnhealthy {
		return 1
	}
	return 0
}
