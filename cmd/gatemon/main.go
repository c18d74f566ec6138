// Command gatemon plays the configured sounds through the gate analysis and
// shows live level meters, hits and spectra.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cwbudde/algo-gate/event"
	"github.com/cwbudde/algo-gate/gate"
	"github.com/cwbudde/algo-gate/internal/config"
	"github.com/cwbudde/algo-gate/internal/journal"
	"github.com/cwbudde/algo-gate/internal/ui"
	"github.com/cwbudde/algo-gate/internal/voice"
)

var (
	version = "0.1.0"
)

// CLI defines the command-line interface
type CLI struct {
	Version  bool          `short:"v" help:"Show version information"`
	Config   string        `short:"c" type:"existingfile" default:"gate.yaml" help:"Path to YAML config file"`
	NoTUI    bool          `name:"no-tui" help:"Log events to stderr instead of showing meters"`
	Debug    bool          `help:"Enable debug logging"`
	Journal  string        `type:"path" help:"Override the journal database path"`
	Interval time.Duration `default:"1s" help:"Replay interval for one-shot sounds"`
	Duration time.Duration `help:"Stop after this long (0 runs until interrupted)"`
	Watch    bool          `default:"true" negatable:"" help:"Reload the config file when it changes"`
	Sounds   []string      `arg:"" name:"sounds" optional:"" help:"Sound ids to play (default: all configured sounds)"`
}

func main() {
	cliArgs := &CLI{}
	kong.Parse(cliArgs,
		kong.Name("gatemon"),
		kong.Description("Envelope gate and spectrum monitor"),
		kong.UsageOnError(),
	)

	if cliArgs.Version {
		fmt.Println("gatemon", version)
		os.Exit(0)
	}

	if err := run(cliArgs); err != nil {
		slog.Error("gatemon failed", "err", err)
		os.Exit(1)
	}
}

func run(cli *CLI) error {
	logOut, closeLog, err := logTarget(cli.NoTUI)
	if err != nil {
		return err
	}
	defer closeLog()

	level := slog.LevelInfo
	if cli.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level})))

	hc, err := config.NewHotConfig(cli.Config)
	if err != nil {
		return err
	}
	cfg := hc.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cli.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cli.Duration)
		defer cancel()
	}
	// Quitting the UI ends playback as well.
	ctx, quit := context.WithCancel(ctx)
	defer quit()

	sounds, err := newSoundTable(cli.Config, cfg, cli.Sounds)
	if err != nil {
		return err
	}
	if cli.Watch {
		hc.OnReload(func(c *config.Config) {
			if err := sounds.reload(c); err != nil {
				slog.Error("sound reload failed", "err", err)
			}
		})
		if err := hc.Watch(ctx); err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}

	bus := event.NewBus()

	opts, err := cfg.Analysis.ServiceOptions()
	if err != nil {
		return err
	}
	svc, err := gate.New(bus, append(opts, gate.WithLogger(slog.Default()))...)
	if err != nil {
		return err
	}
	defer svc.Close()

	store, err := openJournal(cli.Journal, cfg.Journal.Path, bus)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	player := voice.NewPlayer(svc)
	defer player.StopAll()
	go sounds.play(ctx, player, cli.Interval)

	if cli.NoTUI {
		logEvents(ctx, bus)
	} else if err := runTUI(ctx, bus); err != nil {
		return err
	}

	quit()
	player.StopAll()
	if store != nil {
		printSummary(os.Stdout, store)
	}
	return nil
}

// logTarget keeps stderr free for the terminal UI.
func logTarget(noTUI bool) (io.Writer, func(), error) {
	if noTUI {
		return os.Stderr, func() {}, nil
	}
	f, err := os.OpenFile("gatemon.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func openJournal(override, configured string, bus *event.Bus) (*journal.Store, error) {
	path := override
	if path == "" {
		path = configured
	}
	if path == "" {
		return nil, nil
	}
	store, err := journal.Open(path)
	if err != nil {
		return nil, err
	}
	store.Attach(bus)
	return store, nil
}

func logEvents(ctx context.Context, bus *event.Bus) {
	sub := bus.OnHit(func(e event.HitEvent) {
		slog.Info("hit", "sound", e.ID, "rms", e.RMS)
	})
	defer sub.Cancel()
	<-ctx.Done()
}

func runTUI(ctx context.Context, bus *event.Bus) error {
	events, cancel := bus.Subscribe(256)
	defer cancel()

	p := tea.NewProgram(ui.NewModel("gatemon - envelope gate monitor", events), tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, err := p.Run()
	return err
}

func printSummary(w io.Writer, store *journal.Store) {
	counts, err := store.Counts()
	if err != nil {
		slog.Error("journal summary failed", "err", err)
		return
	}
	for id, n := range counts {
		fmt.Fprintf(w, "%-16s %d hits\n", id, n)
	}
}
