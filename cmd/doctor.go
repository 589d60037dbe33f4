package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liveline-bot/liveline/internal/config"
	"github.com/liveline-bot/liveline/internal/store/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("liveline doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("  Config invalid: %s\n", err)
	}

	fmt.Println()
	fmt.Println("  Telegram:")
	if !cfg.Telegram.Enabled {
		fmt.Printf("    %-10s disabled\n", "Status:")
	} else {
		fmt.Printf("    %-10s enabled\n", "Status:")
		fmt.Printf("    %-10s %s\n", "Token:", maskToken(cfg.Telegram.Token))
		fmt.Printf("    %-10s %d configured\n", "Admins:", len(cfg.Telegram.AdminIDs))
	}

	fmt.Println()
	fmt.Println("  Database:")
	dbPath := config.ResolvePath(cfg.Database.Path)
	fmt.Printf("    %-10s %s\n", "Path:", dbPath)
	db, err := sqlite.Open(dbPath)
	if err != nil {
		fmt.Printf("    %-10s OPEN FAILED (%s)\n", "Status:", err)
	} else {
		defer db.Close()
		stores := sqlite.NewStores(db)
		parties, _ := stores.Parties.List(context.Background())
		entries, _ := stores.Queue.List(context.Background())
		rules, _ := stores.Rules.List(context.Background())
		fmt.Printf("    %-10s OK (%d parties, %d queued, %d rules)\n",
			"Status:", len(parties), len(entries), len(rules))
	}

	fmt.Println()
	fmt.Println("  Panel:")
	if !cfg.Panel.Enabled {
		fmt.Printf("    %-10s disabled\n", "Status:")
	} else {
		fmt.Printf("    %-10s http://%s:%d\n", "Address:", cfg.Panel.Host, cfg.Panel.Port)
		if cfg.Panel.Token == "" {
			fmt.Printf("    %-10s none (local use only)\n", "Auth:")
		} else {
			fmt.Printf("    %-10s bearer token\n", "Auth:")
		}
	}

	fmt.Println()
	if cfg.Reminder.Cron == "" {
		fmt.Println("  Reminder: disabled")
	} else {
		fmt.Printf("  Reminder: %s\n", cfg.Reminder.Cron)
	}
}

// maskToken hides all but the bot ID prefix of a Telegram token.
func maskToken(token string) string {
	if token == "" {
		return "MISSING"
	}
	if idx := strings.IndexByte(token, ':'); idx > 0 {
		return token[:idx] + ":****"
	}
	return "****"
}
