package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/onboardqa/configs"
	"github.com/Aman-CERP/onboardqa/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage onboardqa configuration",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter .onboardqa.yaml to the current directory",
		Long: `Write a commented .onboardqa.yaml template to the current directory.

Every key in the template is optional; omitted keys keep their defaults.
Environment variables (ONBOARDQA_*) override values from the file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing .onboardqa.yaml")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	path := ".onboardqa.yaml"

	if fileExists(path) && !force {
		abs, _ := filepath.Abs(path)
		return fmt.Errorf("%s already exists\nUse --force to overwrite", abs)
	}

	if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	cmd.Printf("Created %s\n", path)
	cmd.Println("Edit it to point paths.policies_dir at your policy corpus, then run 'onboardqa ingest'.")
	return nil
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration after merging defaults,
.onboardqa.yaml, and ONBOARDQA_* environment overrides.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}

			cmd.Print(string(data))
			return nil
		},
	}
}
