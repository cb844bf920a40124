// Package main provides the CLI entrypoint for fish-bot.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	dataDirFlag string
	debugFlag   bool
	noTrayFlag  bool

	monitorAddr string

	probeOutput string
	probeOCR    bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fish-bot",
		Short:         "Perception-driven fishing minigame bot",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runBotCmd,
	}

	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "data directory (default: executable dir with images/, else working dir)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&noTrayFlag, "no-tray", false, "run without the system tray; stop with Ctrl+C")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bot (default command)",
		Args:  cobra.NoArgs,
		RunE:  runBotCmd,
	}
	runCmd.Flags().BoolVar(&noTrayFlag, "no-tray", false, "run without the system tray; stop with Ctrl+C")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newFixLogsCmd())
	rootCmd.AddCommand(newKeysCmd())
	rootCmd.AddCommand(newMonitorCmd())
	rootCmd.AddCommand(newProbeCmd())

	return rootCmd
}

func currentPaths() Paths {
	return NewPaths(resolveDataDir(dataDirFlag))
}

// initCommandLogger logs to stderr for commands that do not start the bot
func initCommandLogger() {
	level := zerolog.WarnLevel
	if debugFlag {
		level = zerolog.DebugLevel
	}
	InitWriterLogger(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}, level)
}

func runBotCmd(cmd *cobra.Command, _ []string) error {
	paths := currentPaths()
	if err := InitLogger(paths.LogDir(), debugFlag, true); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer CloseLogger()

	bot := NewBot(paths)
	return bot.Run(noTrayFlag)
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [date]",
		Short: "Show the daily fishing report (YYYY-MM-DD); lists dates without one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initCommandLogger()
			ctx := context.Background()

			store, err := openStatsStore(ctx, currentPaths())
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 0 {
				dates, err := store.Dates(ctx)
				if err != nil {
					return fmt.Errorf("failed to list dates: %w", err)
				}
				fmt.Fprint(cmd.OutOrStdout(), RenderDates(dates))
				return nil
			}

			date := args[0]
			if _, err := time.Parse("2006-01-02", date); err != nil {
				return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
			}
			summary, err := store.DailySummary(ctx, date)
			if err != nil {
				return fmt.Errorf("failed to build report: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), RenderDaySummary(summary))
			return nil
		},
	}
}

func newFixLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fix-logs",
		Short: "Correct known fish-name misspellings in fishing_log.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initCommandLogger()
			path := currentPaths().CatchLogFile()
			fixed, err := FixSpelling(path)
			if err != nil {
				return err
			}
			if fixed {
				fmt.Fprintf(cmd.OutOrStdout(), "Spelling corrections applied to %s\n", path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "No log file at %s\n", path)
			}
			return nil
		},
	}
}

func newKeysCmd() *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Show key bindings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initCommandLogger()
			settings, err := LoadSettings(currentPaths().SettingsFile())
			if err != nil {
				return err
			}
			for _, kv := range settings.Bindings() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", kv[0], kv[1])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s\n", settingResolution, settings.Resolution())
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <name> <key>",
		Short: "Bind a key (e.g. keys set fish_key F)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			initCommandLogger()
			settings, err := LoadSettings(currentPaths().SettingsFile())
			if err != nil {
				return err
			}
			if err := settings.SetKey(args[0], args[1]); err != nil {
				return err
			}
			if err := settings.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], settings.Key(args[0]))
			return nil
		},
	}

	keysCmd.AddCommand(setCmd)
	return keysCmd
}

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Live status of a running bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			initCommandLogger()
			addr := monitorAddr
			if addr == "" {
				cfg, err := LoadBotConfig(currentPaths().BotConfigFile())
				if err != nil {
					LogWarn("Failed to load bot.toml: %v", err)
				}
				addr = cfg.Server.Addr
			}
			return RunMonitor(addr)
		},
	}
	cmd.Flags().StringVar(&monitorAddr, "addr", "", "status server address (default: server.addr from bot.toml)")
	return cmd
}

func newProbeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe <screenshot.png>",
		Short: "Run every detection against a saved screenshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := currentPaths()
			if err := InitLogger(paths.LogDir(), debugFlag, false); err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			defer CloseLogger()

			settings, err := LoadSettings(paths.SettingsFile())
			if err != nil {
				LogWarn("[CONFIG] Failed to load settings: %v", err)
			}
			cfg, err := LoadBotConfig(paths.BotConfigFile())
			if err != nil {
				LogWarn("[CONFIG] Failed to load bot.toml: %v", err)
			}

			var reader LineReader
			if probeOCR {
				tr := NewTextReader(cfg.OCR.Language, cfg.OCR.Upscale)
				defer tr.Close()
				reader = tr
			}

			report, err := RunProbe(args[0], paths.Images, settings.Resolution(), reader, probeOutput)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Image %dx%d, templates from %s\n", report.Width, report.Height, settings.Resolution())
			for _, h := range report.Hits {
				mark := " "
				if h.Match.Found {
					mark = "✓"
				}
				fmt.Fprintf(out, "%s %-28s score=%.3f threshold=%.2f\n", mark, h.Cue, h.Match.Score, h.Threshold)
			}
			fmt.Fprintf(out, "  arrow: %s (%.3f)\n", report.Arrow, report.ArrowConf)
			if probeOCR {
				fmt.Fprintf(out, "  fish:  %q (%.2f)\n", report.FishName, report.FishConf)
			}
			if report.Output != "" {
				fmt.Fprintf(out, "Annotated image written to %s\n", report.Output)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&probeOutput, "out", "result.png", "annotated output image (empty to skip)")
	cmd.Flags().BoolVar(&probeOCR, "ocr", false, "also run fish-name OCR")
	return cmd
}
