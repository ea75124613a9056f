package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"pagebot/internal/config"
	"pagebot/internal/provider"
	"pagebot/internal/store"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your PageBot installation",
		Long: `Verifies that PageBot's configuration, page store, and AI backend are
correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("PageBot Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'pagebot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n%d passed, %d failed\n", passed, 1)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Verify token resolved (not a leftover placeholder)
			if cfg.Messenger.VerifyToken == "" || cfg.Messenger.VerifyToken[0] == '$' {
				printFail("Verify token", "unset; export VERIFY_TOKEN or set messenger.verifyToken")
				failed++
			} else {
				printPass("Verify token", "set")
				passed++
			}

			// 4. Page store opens and lists
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			s, err := store.NewSQLiteStore(cfg.Store.DBPath, logger)
			if err != nil {
				printFail("Page store", err.Error())
				failed++
			} else {
				profiles, listErr := s.List(ctx)
				if listErr != nil {
					printFail("Page store", listErr.Error())
					failed++
				} else {
					printPass("Page store", fmt.Sprintf("%d page(s) configured", len(profiles)))
					passed++
					enabled := 0
					for _, p := range profiles {
						if p.Enabled {
							enabled++
						}
					}
					if len(profiles) > 0 && enabled == 0 {
						printWarn("Pages", "all configured pages are disabled")
					}
				}
				s.Close()
			}

			// 5. Backend reachable
			backend := provider.NewOpenAI(provider.OpenAIConfig{
				APIKey:  cfg.Backend.APIKey,
				APIBase: cfg.Backend.APIBase,
				Model:   cfg.Backend.Model,
				Timeout: 10 * time.Second,
				Logger:  logger,
			})
			if err := backend.Healthy(ctx); err != nil {
				printFail("AI backend", err.Error())
				failed++
			} else {
				printPass("AI backend", cfg.Backend.APIBase)
				passed++
			}

			fmt.Printf("\n%d passed, %d failed\n", passed, failed)
			return nil
		},
	}
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
