package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change GitPulse configuration.

Keys use dot notation, e.g. "sync.cooldown" or "ratelimit.min_budget".
Durations are strings like "5m" or "1h".`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// shownKeys are the tunables listed by "config show", with the
// defaults applied when unset.
var shownKeys = []struct {
	key string
	def string
}{
	{"sync.cooldown", "5m"},
	{"sync.interval", "1h"},
	{"ratelimit.min_budget", "100"},
	{"ratelimit.initial_backoff", "1s"},
	{"ratelimit.max_backoff_multiplier", "60"},
	{"ratelimit.jitter", "0.2"},
	{"breaker.failure_threshold", "5"},
	{"breaker.pause", "5m"},
	{"sweeper.enabled", "true"},
	{"github.token", ""},
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	cmd.Printf("Configuration (%s)\n\n", configStore.Path())

	for _, entry := range shownKeys {
		val, ok := configStore.Get(entry.key)
		display := entry.def + " (default)"
		if ok {
			display = fmt.Sprintf("%v", val)
			if isSecretKey(entry.key) {
				display = maskToken(fmt.Sprintf("%v", val))
			}
		} else if entry.def == "" {
			display = "(not set)"
		}
		cmd.Printf("  %s = %s\n", entry.key, display)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	key := args[0]
	val, ok := configStore.Get(key)
	if !ok {
		cmd.Printf("%s is not set\n", key)
		return nil
	}

	if isSecretKey(key) {
		cmd.Printf("%s = %s\n", key, maskToken(fmt.Sprintf("%v", val)))
		return nil
	}
	cmd.Printf("%s = %v\n", key, val)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	key, raw := args[0], args[1]
	if err := configStore.Set(key, parseConfigValue(raw)); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}

	if isSecretKey(key) {
		cmd.Printf("Set %s = %s\n", key, maskToken(raw))
		return nil
	}
	cmd.Printf("Set %s = %s\n", key, raw)
	return nil
}

// parseConfigValue converts the raw argument to the narrowest TOML
// type: bool, integer, float, then string.
func parseConfigValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// isSecretKey reports whether the key holds a credential.
func isSecretKey(key string) bool {
	return strings.HasPrefix(key, "github.token")
}

// maskToken hides all but the edges of a credential.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
