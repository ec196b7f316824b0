package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soyeahso/ochre/internal/config"
	"github.com/soyeahso/ochre/internal/version"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Ochre status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Ochre %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:   %s\n", paths.Config)
			fmt.Printf("Data:     %s\n", paths.Data)
			fmt.Printf("Database: %s\n", paths.Database)
			fmt.Printf("Todos:    %s\n", paths.Todos)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:   not found (using defaults)")
					return nil
				}
				fmt.Printf("Config:   error loading: %v\n", err)
				return nil
			}

			fmt.Printf("Server:   port=%d bind=%s\n", cfg.Server.Port, cfg.Server.Bind)
			fmt.Printf("Model:    default=%s baseUrl=%s\n", cfg.Model.Default, cfg.Model.BaseURL)
			if cfg.Model.APIKey == "" {
				fmt.Println("API key:  (not set)")
			} else {
				fmt.Println("API key:  set")
			}

			if len(cfg.Mounts) > 0 {
				for _, m := range cfg.Mounts {
					mode := "rw"
					if m.ReadOnly {
						mode = "ro"
					}
					fmt.Printf("Mount:    %s -> %s (%s)\n", m.Name, m.Path, mode)
				}
			} else {
				fmt.Println("Mounts:   (none)")
			}

			if cfg.Gmail != nil {
				fmt.Printf("Gmail:    account=%s\n", cfg.Gmail.AccountName)
			} else {
				fmt.Println("Gmail:    (not configured)")
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}
}
