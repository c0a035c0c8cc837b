package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagServer   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "rendezvous-peer",
	Short: "WebRTC peer that negotiates through a rendezvous signaling relay",
	Long: `rendezvous-peer joins a signaling room, negotiates a WebRTC data channel with
the other member through the relay and exchanges a hello message.`,
}

// Execute runs the root command. It is called once by main.main().
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagServer, "server", "s", "http://localhost:8080", "signaling server base URL")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(joinCmd)
}
