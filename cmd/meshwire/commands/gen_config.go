package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var replace bool

var genConfigCmd = &cobra.Command{
	Use:   "gen-config",
	Short: "Generate a default config file",
	Run: func(_ *cobra.Command, _ []string) {
		startLogger()

		path := resolveConfigPath()
		if _, err := os.Stat(path); err == nil && !replace {
			logger.Fatalf("Config %s already exists (use --replace to overwrite)", path)
		}

		conf := DefaultFileConfig()
		f, err := os.Create(path)
		if err != nil {
			logger.Fatalf("Failed to create config: %s", err)
		}
		defer f.Close()

		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		if err := enc.Encode(conf); err != nil {
			logger.Fatalf("Failed to write config: %s", err)
		}
		fmt.Println(path)
	},
}

func init() {
	genConfigCmd.Flags().BoolVarP(&replace, "replace", "r", false, "overwrite an existing config")
}
