// widgetchat runs the campus chat widgets in a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	personaID string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "widgetchat",
	Short: "Terminal front-end for the 小科 / 交好运 chat widgets",
	Long: `widgetchat talks to the rule-based campus widgets without a browser.
It loads the same rulesets and persona settings as the API server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&personaID, "persona", "p", "xiaoke", "widget to talk to (xiaoke, jiaohaoyun)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	rootCmd.AddCommand(chatCmd, askCmd, rulesCmd, uploadCmd)
}

func newLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
