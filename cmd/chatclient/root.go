package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"building_chat/internal/logger"
	"building_chat/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "chatclient",
	Short: "Building chat client",
	Long: `chatclient connects to a building chat gateway, keeps the live connection
alive across drops and falls back to request/response when it cannot.`,
	SilenceUsage: true,
}

// Execute 執行 root command，失敗時以 1 結束
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path (default ./pkg/config/config.yaml)")
	rootCmd.PersistentFlags().String("api-url", "", "gateway request/response base url (overrides chat.api_url)")
	rootCmd.PersistentFlags().String("token", "", "bearer token (overrides chat.token)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

// loadConfig 讀取設定並套用共用旗標
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v, _ := cmd.Flags().GetString("api-url"); v != "" {
		cfg.Chat.APIURL = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		cfg.Chat.Token = v
	}
	return cfg, nil
}

// newLogger 建立主控台輸出的 logger；設定錯誤時不輸出日誌
func newLogger(cmd *cobra.Command, cfg *config.Config) *zap.Logger {
	level := cfg.Log.Level
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	return logger.Must(level, "console")
}
