package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openthread/otcommissioner/internal/cli/health"
	"github.com/openthread/otcommissioner/internal/cli/output"
	"github.com/openthread/otcommissioner/internal/cli/timeutil"
)

var (
	statusOutput     string
	statusPidFile    string
	statusHealthPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show commissioner status",
	Long: `Display the current status of a running otcommissioner process.

This command checks the process PID file and then calls the health
endpoint to report connection state and uptime.

Examples:
  # Check status (uses default settings)
  otcommissioner status

  # Check status with a custom health port
  otcommissioner status --health-port 9091

  # Output as JSON
  otcommissioner status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/otcommissioner/otcommissioner.pid)")
	statusCmd.Flags().IntVar(&statusHealthPort, "health-port", defaultMetricsPort, "Metrics/health server port")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

// ServerStatus reports a running instance's process and health state.
type ServerStatus struct {
	Running   bool   `json:"running" yaml:"running"`
	PID       int    `json:"pid,omitempty" yaml:"pid,omitempty"`
	Message   string `json:"message" yaml:"message"`
	StartedAt string `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Healthy   bool   `json:"healthy" yaml:"healthy"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	status := ServerStatus{
		Running: false,
		Healthy: false,
		Message: "otcommissioner is not running",
	}

	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	pidData, err := os.ReadFile(pidPath)
	if err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
		if err == nil {
			process, err := os.FindProcess(pid)
			if err == nil {
				if err := process.Signal(syscall.Signal(0)); err == nil {
					status.Running = true
					status.PID = pid
				}
			}
		}
	}

	healthURL := fmt.Sprintf("http://localhost:%d/healthz", statusHealthPort)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(healthURL)
	if err == nil {
		defer func() { _ = resp.Body.Close() }()

		var healthResp health.Response
		if err := json.NewDecoder(resp.Body).Decode(&healthResp); err == nil {
			status.Running = true
			status.Healthy = healthResp.Status == "healthy"
			status.StartedAt = healthResp.Data.StartedAt
			status.Uptime = healthResp.Data.Uptime
			if status.Healthy {
				status.Message = "otcommissioner is running and connected"
			} else {
				status.Message = fmt.Sprintf("otcommissioner is running but unhealthy: %s", healthResp.Error)
			}
		} else {
			status.Running = true
			status.Message = "otcommissioner is running but health response invalid"
		}
	} else if status.Running {
		status.Message = "otcommissioner process exists but health check failed"
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		printStatusTable(status)
	}

	return nil
}

func printStatusTable(status ServerStatus) {
	fmt.Println()
	fmt.Println("otcommissioner Status")
	fmt.Println()

	var pairs [][2]string
	if status.Running {
		if status.Healthy {
			pairs = append(pairs, [2]string{"Status", "\033[32m● Connected\033[0m"})
		} else {
			pairs = append(pairs, [2]string{"Status", "\033[33m● Running (unhealthy)\033[0m"})
		}
		pairs = append(pairs, [2]string{"PID", strconv.Itoa(status.PID)})
		if status.StartedAt != "" {
			pairs = append(pairs, [2]string{"Started", timeutil.FormatTime(status.StartedAt)})
		}
		if status.Uptime != "" {
			pairs = append(pairs, [2]string{"Uptime", timeutil.FormatUptime(status.Uptime)})
		}
	} else {
		pairs = append(pairs, [2]string{"Status", "\033[31m○ Stopped\033[0m"})
	}
	_ = output.SimpleTable(os.Stdout, pairs)

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()
}
