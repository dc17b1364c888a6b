package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matsen/litsynth/internal/config"
	"github.com/matsen/litsynth/internal/generate"
	"github.com/matsen/litsynth/internal/logging"
)

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
	Long: `Show the resolved configuration.

Settings come from ~/.config/lsy/config.yml, overridden by environment
variables (also read from .env in the workspace and current directory):

  SEMANTIC_SCHOLAR_API_KEY  GEMINI_API_KEY   GEMINI_MODEL
  OPENAI_API_KEY            OPENAI_BASE_URL  GPT_MODEL
  COHERE_API_KEY            COHERE_MODEL     CLAUDE_MODEL
  OLLAMA_HOST               OLLAMA_MODEL
  LSY_WORKSPACE             LSY_SEARCH_LIMIT LSY_LOG_LEVEL`,
}

// ConfigResult is the response of config show.
type ConfigResult struct {
	Workspace  string              `json:"workspace" yaml:"workspace"`
	ConfigPath string              `json:"config_path" yaml:"config_path"`
	Providers  []string            `json:"providers" yaml:"providers"`
	Config     config.GlobalConfig `json:"config" yaml:"config"`
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration with API keys masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := mustSetup(logging.FormatText)

		var providers []string
		for _, g := range generate.Providers(a.cfg, nil) {
			providers = append(providers, g.Name())
		}
		if providers == nil {
			providers = []string{}
		}
		res := ConfigResult{
			Workspace:  a.root,
			ConfigPath: config.GlobalConfigPath(),
			Providers:  providers,
			Config:     a.cfg.Redacted(),
		}
		if humanOutput {
			out, err := yaml.Marshal(res)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		}
		return outputJSON(res)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the global config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GlobalConfigPath()
		if humanOutput {
			fmt.Println(path)
			return nil
		}
		return outputJSON(StatusResponse{Status: "ok", Path: path})
	},
}
