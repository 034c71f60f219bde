package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/steadycast/steadycast"
	"github.com/steadycast/steadycast/internal/logging"
	"github.com/steadycast/steadycast/resilience"
	"github.com/steadycast/steadycast/types"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "steadycast",
		Short:         "Resolve video sources into playable locators and keep playback alive",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v.SetConfigName("steadycast")
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
			if home, err := os.UserHomeDir(); err == nil {
				v.AddConfigPath(home)
			}
			v.SetEnvPrefix("STEADYCAST")
			v.AutomaticEnv()
			if err := v.ReadInConfig(); err != nil {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return err
				}
			}
			return v.BindPFlags(cmd.Flags())
		},
	}

	root.PersistentFlags().String("quality", "progressive", "Quality mode: progressive, 360, 480, 720, 1080")
	root.PersistentFlags().String("cache-dir", defaultCacheDir(), "Directory for persisted caches (empty disables persistence)")
	root.PersistentFlags().Duration("timeout", 45*time.Second, "Overall resolution timeout")
	root.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	root.PersistentFlags().String("delegate", "", "External extractor binary for the last-resort strategy")

	root.AddCommand(newResolveCmd(v), newPlayCmd(v))
	return root
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return dir + "/steadycast"
}

func openSession(v *viper.Viper) (*steadycast.Session, error) {
	mode, err := types.ParseQualityMode(v.GetString("quality"))
	if err != nil {
		return nil, err
	}
	log := logging.New(logging.Config{Level: v.GetString("log-level"), Console: true})

	s := steadycast.New().
		WithLogger(log).
		WithQuality(mode).
		WithCacheDir(v.GetString("cache-dir")).
		WithResolutionTimeout(v.GetDuration("timeout")).
		WithDelegateBinary(v.GetString("delegate"))
	if err := s.Open(); err != nil {
		return nil, err
	}
	return s, nil
}

func newResolveCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <source-url>",
		Short: "Resolve a source reference into a playable locator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(v)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			res := s.Resolve(cmd.Context(), args[0])
			if !res.OK {
				return res.Err
			}
			out, _ := json.MarshalIndent(struct {
				Locator types.Locator `json:"locator"`
				Quality string        `json:"quality"`
			}{res.Locator, res.QualityLabel}, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

// stubEngine is a stand-in playback engine for the play command: it prints
// what a real engine would be asked to do.
type stubEngine struct{ loadedAt time.Time }

func (e *stubEngine) Load(loc types.Locator) {
	e.loadedAt = time.Now()
	fmt.Printf("engine: load %s (videoOnly=%v)\n", loc.URL, loc.VideoOnly)
}
func (e *stubEngine) Seek(pos time.Duration)  { fmt.Printf("engine: seek %s\n", pos) }
func (e *stubEngine) Reinitialize()           { fmt.Println("engine: reinitialize") }
func (e *stubEngine) Position() time.Duration { return time.Since(e.loadedAt) }

func newPlayCmd(v *viper.Viper) *cobra.Command {
	var (
		resume       bool
		randomSeek   bool
		retryCap     int
		stallTimeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "play <source-url>",
		Short: "Resolve a source and drive a stub engine through the resilience controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(v)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			failed := make(chan error, 1)
			s.WithResilience(resilience.Config{
				RetryCap:      retryCap,
				StallTimeout:  stallTimeout,
				ResumeEnabled: resume,
				RandomSeek:    randomSeek,
				OnFailed:      func(err error) { failed <- err },
			})

			engine := &stubEngine{}
			ctrl := s.Attach(engine)
			defer ctrl.Close()

			ctrl.SetSource(s.Source(args[0]))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			select {
			case <-ctx.Done():
				ctrl.Stop()
			case err := <-failed:
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "Offer saved resume positions")
	cmd.Flags().BoolVar(&randomSeek, "random-seek", false, "Randomized-seek session (bounds resume record age)")
	cmd.Flags().IntVar(&retryCap, "retry-cap", 0, "Maximum automatic restarts per stall episode (0 = default)")
	cmd.Flags().DurationVar(&stallTimeout, "stall-timeout", 0, "Ready-without-playing window before a stall (0 = default)")
	return cmd
}
