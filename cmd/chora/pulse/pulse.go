// Package pulsecmder provides the pulse command: run the metabolism loop
// once, preview it, or keep it running on its interval.
package pulsecmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chora/pkg/cliui"
	"github.com/papercomputeco/chora/pkg/config"
	"github.com/papercomputeco/chora/pkg/pulse"
	"github.com/papercomputeco/chora/pkg/start"
)

const pulseLongDesc string = `Run the pulse: process triggered signals, sweep for stagnation, and
auto-resolve cleared voids.

By default a single pulse runs and its summary is printed. With --preview
nothing is written; the command reports which signals would be processed.
With --watch the pulse runs on its configured interval until interrupted,
recording its pid so status can report it. The watcher refuses to start
when pulse.enabled is false; a one-shot pulse always runs.

Interval and signal limit follow the usual precedence:
flag > CHORA_* environment > config.toml > default.

Examples:
  chora pulse
  chora pulse --preview
  chora pulse --watch --pulse-interval 30`

const pulseShortDesc string = "Run the metabolism pulse"

func NewPulseCmd() *cobra.Command {
	var (
		preview         bool
		watch           bool
		intervalSeconds uint
		signalLimit     uint
	)

	fs := config.DefaultFlagSet()

	cmd := &cobra.Command{
		Use:   "pulse",
		Short: pulseShortDesc,
		Long:  pulseLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, fs, []string{
				config.FlagPulseInterval,
				config.FlagSignalLimit,
			})

			return runPulse(configDir, debug, preview, watch,
				v.GetUint("pulse.interval_seconds"),
				v.GetUint("pulse.signal_limit"),
			)
		},
	}

	cmd.Flags().BoolVar(&preview, "preview", false, "Show what a pulse would process without writing")
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep pulsing on the configured interval")
	config.AddUintFlag(cmd, fs, config.FlagPulseInterval, &intervalSeconds)
	config.AddUintFlag(cmd, fs, config.FlagSignalLimit, &signalLimit)

	return cmd
}

func runPulse(configDir string, debug, preview, watch bool, intervalSeconds, signalLimit uint) error {
	s, err := start.Open(start.Options{ConfigDir: configDir, Debug: debug})
	if err != nil {
		return err
	}
	defer s.Close()

	runner := pulse.New(pulse.Config{
		Store:       s.Store,
		Registry:    s.Registry,
		Logger:      s.Logger,
		Interval:    time.Duration(intervalSeconds) * time.Second,
		SignalLimit: int(signalLimit),
	})

	ctx := context.Background()

	if preview {
		data, err := runner.Preview(ctx)
		if err != nil {
			return fmt.Errorf("previewing pulse: %w", err)
		}
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding preview: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	if watch {
		// An explicit one-shot always runs; the background loop honors
		// the config switch.
		if !s.Config.Pulse.Enabled {
			return fmt.Errorf("pulse is disabled (pulse.enabled = false); enable it with 'chora config set pulse.enabled true'")
		}
		return runWatch(ctx, runner, configDir, intervalSeconds)
	}

	rec, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("running pulse: %w", err)
	}
	if rec == nil {
		fmt.Printf("  %s pulse already running, skipped\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Printf("\n  %s pulse complete %s\n",
		cliui.SuccessMark,
		cliui.StepStyle.Render(fmt.Sprintf("(%s)", cliui.FormatDuration(time.Duration(rec.DurationMs)*time.Millisecond))),
	)
	fmt.Printf("  %s  %d found, %d processed, %d protocols, %d errors\n\n",
		cliui.KeyStyle.Render("Signals:"),
		rec.SignalsFound, rec.SignalsProcessed, rec.ProtocolsTriggered, rec.Errors,
	)
	return nil
}

func runWatch(ctx context.Context, runner *pulse.Runner, configDir string, intervalSeconds uint) error {
	if st, err := start.LoadState(configDir); err == nil && st != nil {
		return fmt.Errorf("pulse watcher already recorded (pid %d); run 'chora pulse' for a one-shot", st.PID)
	}

	if err := start.SaveState(configDir, &start.State{
		PID:             os.Getpid(),
		IntervalSeconds: intervalSeconds,
		StartedAt:       time.Now().UTC(),
	}); err != nil {
		return err
	}
	defer func() {
		if err := start.ClearState(configDir); err != nil {
			fmt.Fprintf(os.Stderr, "clearing pulse state: %v\n", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("  %s pulsing every %ds, ctrl-c to stop\n",
		cliui.DimStyle.Render("●"), intervalSeconds)

	return runner.RunLoop(ctx)
}
