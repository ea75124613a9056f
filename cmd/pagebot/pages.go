package main

import (
	"context"
	"fmt"

	"pagebot/internal/config"
	"pagebot/internal/domain"
	"pagebot/internal/store"

	"github.com/spf13/cobra"
)

// openStore loads the config and opens the profile store for a one-shot
// CLI operation.
func openStore() (*store.SQLiteStore, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return store.NewSQLiteStore(cfg.Store.DBPath, logger)
}

func pagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Manage page profiles",
		Long:  "Add, list, remove, import, and export the page profiles that the relay answers for.",
	}
	cmd.AddCommand(pagesAddCmd())
	cmd.AddCommand(pagesListCmd())
	cmd.AddCommand(pagesRemoveCmd())
	cmd.AddCommand(pagesImportCmd())
	cmd.AddCommand(pagesExportCmd())
	return cmd
}

func pagesAddCmd() *cobra.Command {
	var (
		token        string
		mode         string
		instructions string
		assistantID  string
		disabled     bool
	)
	cmd := &cobra.Command{
		Use:   "add [page-id]",
		Short: "Add or update a page profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			profile := &domain.PageProfile{
				PageID:       args[0],
				AccessToken:  token,
				Mode:         domain.ReplyMode(mode),
				Instructions: instructions,
				AssistantID:  assistantID,
				Enabled:      !disabled,
			}
			if err := s.Put(context.Background(), profile); err != nil {
				return err
			}
			logger.Info("page saved", "page_id", profile.PageID, "mode", mode)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "page access token (required)")
	cmd.Flags().StringVar(&mode, "mode", "direct", "reply mode: direct or assistant")
	cmd.Flags().StringVar(&instructions, "instructions", "", "system instructions (direct mode)")
	cmd.Flags().StringVar(&assistantID, "assistant", "", "assistant ID (assistant mode)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "store the profile disabled")
	cmd.MarkFlagRequired("token")
	return cmd
}

func pagesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			profiles, err := s.List(context.Background())
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				fmt.Println("no pages configured")
				return nil
			}
			for _, p := range profiles {
				state := "enabled"
				if !p.Enabled {
					state = "disabled"
				}
				behavior := p.AssistantID
				if p.Mode == domain.ModeDirect {
					behavior = fmt.Sprintf("%d chars of instructions", len(p.Instructions))
				}
				fmt.Printf("%-20s %-10s %-9s %s\n", p.PageID, p.Mode, state, behavior)
			}
			return nil
		},
	}
}

func pagesRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [page-id]",
		Short: "Remove a page profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Delete(context.Background(), args[0]); err != nil {
				return err
			}
			logger.Info("page removed", "page_id", args[0])
			return nil
		},
	}
}

func pagesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file.yaml]",
		Short: "Import page profiles from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := store.ImportYAML(context.Background(), s, args[0])
			if err != nil {
				return err
			}
			logger.Info("pages imported", "count", n, "file", args[0])
			return nil
		},
	}
}

func pagesExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file.yaml]",
		Short: "Export page profiles to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := store.ExportYAML(context.Background(), s, args[0])
			if err != nil {
				return err
			}
			logger.Info("pages exported", "count", n, "file", args[0])
			return nil
		},
	}
}
