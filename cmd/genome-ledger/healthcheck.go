package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const defaultHealthURL = "http://localhost:8080/health"

func newHealthcheckCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running server's /health endpoint (for container health checks)",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if doHealthCheck(url) != 0 {
				return errors.New("health check failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", defaultHealthURL, "health endpoint to probe")
	return cmd
}

// doHealthCheck returns 0 if url answers 200 OK and 1 otherwise.
func doHealthCheck(url string) int {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url) //nolint:gosec,noctx // url comes from the operator
	if err != nil {
		fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "health check failed: status %d\n", resp.StatusCode)
		return 1
	}
	return 0
}
