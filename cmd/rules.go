package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/liveline-bot/liveline/internal/autoreply"
	"github.com/liveline-bot/liveline/internal/config"
	"github.com/liveline-bot/liveline/internal/store/sqlite"
)

// rulesCmd manages auto-reply rules straight against the database, for
// setups where editing over chat is awkward. The running bot picks up
// changes on next start; live edits go through /autoreply.
func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage auto-reply rules",
	}
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesDelCmd())
	return cmd
}

func openMatcher() (*autoreply.Matcher, func(), error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := sqlite.Open(config.ResolvePath(cfg.Database.Path))
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	matcher := autoreply.NewMatcher(sqlite.NewRuleStore(db))
	if err := matcher.Load(context.Background()); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("load rules: %w", err)
	}
	return matcher, func() { db.Close() }, nil
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List auto-reply rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			matcher, closeDB, err := openMatcher()
			if err != nil {
				return err
			}
			defer closeDB()

			rules := matcher.List()
			if len(rules) == 0 {
				fmt.Println("No auto-reply rules.")
				return nil
			}
			for _, r := range rules {
				marker := ""
				if r.MediaRef != "" {
					marker = " [photo]"
				}
				fmt.Printf("%d. %q -> %s%s\n", r.Position+1, r.Keyword, r.Reply, marker)
			}
			return nil
		},
	}
}

func rulesAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <keyword> <reply...>",
		Short: "Add or overwrite an auto-reply rule",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			matcher, closeDB, err := openMatcher()
			if err != nil {
				return err
			}
			defer closeDB()

			keyword := args[0]
			reply := ""
			for i, a := range args[1:] {
				if i > 0 {
					reply += " "
				}
				reply += a
			}
			matcher.Set(context.Background(), keyword, reply, "")
			fmt.Printf("Rule for %q saved.\n", keyword)
			return nil
		},
	}
}

func rulesDelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del <keyword>",
		Short: "Delete an auto-reply rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matcher, closeDB, err := openMatcher()
			if err != nil {
				return err
			}
			defer closeDB()

			if !matcher.Delete(context.Background(), args[0]) {
				fmt.Fprintf(os.Stderr, "No rule for %q.\n", args[0])
				os.Exit(1)
			}
			fmt.Printf("Rule for %q deleted.\n", args[0])
			return nil
		},
	}
}
