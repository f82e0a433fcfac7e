// Package jobs implements the CLI commands that talk to a running
// daemon's API: listing jobs and triggering, starting, or stopping them.
package jobs

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/gigharvest/internal/domain"
)

const (
	defaultAPIURL  = "http://127.0.0.1:8080"
	requestTimeout = 10 * time.Second
)

// Command returns the jobs command group.
func Command() *cobra.Command {
	var apiURL string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and control scheduled jobs",
		Long:  `Talk to a running scheduler daemon to list, trigger, start, or stop jobs.`,
	}
	cmd.PersistentFlags().StringVar(&apiURL, "api", defaultAPIURL, "daemon API base URL")

	cmd.AddCommand(
		newListCommand(&apiURL),
		newActionCommand(&apiURL, "trigger", "Trigger an immediate run for one source"),
		newActionCommand(&apiURL, "start", "Start a stopped job"),
		newActionCommand(&apiURL, "stop", "Stop a job"),
	)
	return cmd
}

func newListCommand(apiURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := get(*apiURL + "/api/v1/jobs")
			if err != nil {
				return err
			}

			var resp struct {
				Jobs []domain.ScheduledJob `json:"jobs"`
			}
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("decode jobs: %w", err)
			}

			renderTable(resp.Jobs)
			return nil
		},
	}
}

func newActionCommand(apiURL *string, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [source]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			url := fmt.Sprintf("%s/api/v1/jobs/%s/%s", *apiURL, source, action)
			if err := post(url); err != nil {
				return fmt.Errorf("%s %s: %w", action, source, err)
			}
			fmt.Printf("%s: %s requested\n", source, action)
			return nil
		},
	}
}

func renderTable(jobs []domain.ScheduledJob) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Source", "Status", "Interval", "Runs", "Errors", "Last Success", "Next Run"})
	for _, job := range jobs {
		t.AppendRow(table.Row{
			job.Source,
			job.Status,
			job.Interval,
			job.RunCount,
			job.ErrorCount,
			formatTime(job.LastSuccessAt),
			formatTime(job.NextRunAt),
		})
	}
	t.Render()
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Format(time.RFC3339)
}

func get(url string) ([]byte, error) {
	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body)
	}
	return body, nil
}

func post(url string) error {
	client := &http.Client{Timeout: requestTimeout}
	resp, err := client.Post(url, "application/json", http.NoBody)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(resp.StatusCode, body)
	}
	return nil
}

func apiError(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("api returned %d: %s", status, e.Error)
	}
	return fmt.Errorf("api returned %d", status)
}
