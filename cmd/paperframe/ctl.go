package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var serverAddr string

func init() {
	for _, c := range []*cobra.Command{statusCmd, pauseCmd, resumeCmd, refreshCmd} {
		c.Flags().StringVar(&serverAddr, "server", "http://localhost:8090", "daemon address")
		rootCmd.AddCommand(c)
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the daemon's scheduler state",
	RunE: func(cmd *cobra.Command, args []string) error {
		var status struct {
			Paused      bool    `json:"paused"`
			UpdateTime  string  `json:"update_time"`
			LastRefresh *string `json:"last_refresh"`
			NextUpdate  string  `json:"next_update"`
			ActiveID    string  `json:"active_instance_id"`
		}
		if err := call(http.MethodGet, "/api/status", &status); err != nil {
			return err
		}

		fmt.Printf("paused:       %v\n", status.Paused)
		fmt.Printf("update time:  %s\n", status.UpdateTime)
		fmt.Printf("next update:  %s\n", status.NextUpdate)
		if status.LastRefresh != nil {
			fmt.Printf("last refresh: %s\n", *status.LastRefresh)
		} else {
			fmt.Println("last refresh: never")
		}
		if status.ActiveID != "" {
			fmt.Printf("active:       %s\n", status.ActiveID)
		} else {
			fmt.Println("active:       none")
		}
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause scheduled refreshes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := call(http.MethodPost, "/api/pause", nil); err != nil {
			return err
		}
		fmt.Println("scheduler paused")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume scheduled refreshes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := call(http.MethodPost, "/api/resume", nil); err != nil {
			return err
		}
		fmt.Println("scheduler resumed")
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run a refresh cycle now",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Outcome string `json:"outcome"`
		}
		if err := call(http.MethodPost, "/api/refresh", &result); err != nil {
			return err
		}
		fmt.Printf("refresh done: %s\n", result.Outcome)
		return nil
	},
}

// call performs a request against the daemon and decodes the JSON reply
// into out when non-nil.
func call(method, path string, out any) error {
	client := &http.Client{Timeout: 3 * time.Minute}
	req, err := http.NewRequest(method, serverAddr+path, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach daemon at %s: %w", serverAddr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("daemon: %s", e.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
