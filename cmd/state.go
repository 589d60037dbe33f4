package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/liveline-bot/liveline/internal/config"
	"github.com/liveline-bot/liveline/internal/routing"
)

// stateCmd queries a running instance's panel for its live snapshot.
func stateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show session and queue state of a running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cfg.Panel.Enabled {
				return fmt.Errorf("panel is disabled; enable it to query state")
			}

			url := fmt.Sprintf("http://%s:%d/state", cfg.Panel.Host, cfg.Panel.Port)
			req, err := http.NewRequest(http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			if cfg.Panel.Token != "" {
				req.Header.Set("Authorization", "Bearer "+cfg.Panel.Token)
			}

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("is liveline running? %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("panel returned %d: %s", resp.StatusCode, body)
			}

			if asJSON {
				_, err := io.Copy(os.Stdout, resp.Body)
				return err
			}

			var st routing.State
			if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
				return fmt.Errorf("decode state: %w", err)
			}
			fmt.Println(renderStatus(st))
			fmt.Println(renderQueue(st))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}
