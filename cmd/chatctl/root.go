package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const applicationName = "chatctl"

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Terminal client for hackmate chat",
	Long: `chatctl opens a direct or team conversation on a hackmate chat server,
prints history and live messages, and sends what you type.

Settings come from flags, CHATCTL_* environment variables or
$XDG_CONFIG_HOME/chatctl/config.json.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("server", "http://localhost:8080", "Chat server base URL")
	flags.String("user", "", "Your user UUID")
	flags.String("name", "", "Display name shown in typing indicators")
	flags.Bool("debug", false, "Log socket and session activity to stderr")

	for _, key := range []string{"server", "user", "name", "debug"} {
		cobra.CheckErr(viper.BindPFlag(key, flags.Lookup(key)))
	}
}

func configDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		configHome = filepath.Join(home, ".config")
	}

	return filepath.Clean(filepath.Join(configHome, applicationName))
}

func initConfig() {
	viper.AddConfigPath(configDir())
	viper.SetConfigType("json")
	viper.SetConfigName("config")

	viper.SetEnvPrefix("CHATCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`, `-`, `_`))
	viper.AutomaticEnv()

	// Silently ignore missing config file
	_ = viper.ReadInConfig()
}
