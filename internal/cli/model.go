// Copyright (c) 2025 K. Morrow
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kmorrow/chatloom/internal/config"
	"github.com/kmorrow/chatloom/internal/ollama"
)

var pullCmd = &cobra.Command{
	Use:   "pull [model]",
	Short: "Download a model through the engine",
	Long:  "Download a model through the local Ollama server. With no argument, pulls the configured default model.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, settings, store, err := openEnvironment()
		if err != nil {
			return err
		}
		defer store.Close()

		modelName := settings.Model
		if len(args) == 1 {
			modelName = args[0]
		}

		client := ollama.New(settings)
		if err := client.EnsureRunning(cmd.Context()); err != nil {
			return fmt.Errorf("engine not reachable at %s: %w", settings.EngineURL, err)
		}

		cmd.Printf("Pulling %s...\n", modelName)
		var lastStatus string
		err = client.Pull(cmd.Context(), modelName, func(p ollama.PullProgress) {
			line := p.Status
			if p.Total > 0 {
				line = fmt.Sprintf("%s %.0f%%", p.Status, p.Percent())
			}
			if line != lastStatus {
				cmd.Println(line)
				lastStatus = line
			}
		})
		if err != nil {
			return err
		}
		cmd.Println("Done.")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the settings file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		cmd.Println(config.PathJSON(dir))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		settings, _ := config.Load(dir)
		cmd.Printf("model:       %s\n", settings.Model)
		cmd.Printf("engine_url:  %s\n", settings.EngineURL)
		cmd.Printf("temperature: %g\n", settings.Temperature)
		cmd.Printf("num_ctx:     %d\n", settings.NumCtx)
		cmd.Printf("memory:      %s (k=%d)\n", settings.MemoryType, settings.MemoryK)
		cmd.Printf("theme:       %s\n", settings.Theme)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting and persist it",
	Long:  "Change one setting by its config-file key, e.g. `chatloom config set model llama3.2:1b`.\nA running chatloom picks the change up through the settings file watcher.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := config.Dir()
		if err != nil {
			return err
		}
		current, _ := config.Load(dir)

		next := current
		if err := config.Set(&next, args[0], args[1]); err != nil {
			return err
		}

		store := config.NewStore(dir, current)
		if err := store.Apply(next); err != nil {
			return err
		}
		cmd.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd, configShowCmd, configSetCmd)
}
