package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tesela-ai/tesela/config"
)

var (
	cfgPath    string
	difficulty string
	debug      bool

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "tesela",
		Short: "A sliding-tile merge engine with an expectimax move advisor",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
			cfg = &config.Config{}
			if err := cfg.Load(cfgPath); err != nil {
				return err
			}
			if difficulty != "" {
				if _, err := cfg.ProfileFor(difficulty); err != nil {
					return err
				}
				cfg.Difficulty = strings.ToLower(difficulty)
			}
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a yaml config file")
	rootCmd.PersistentFlags().StringVar(&difficulty, "difficulty", "", "difficulty level (easy, medium, hard, expert)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(autoplayCmd, benchCmd, hintCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
