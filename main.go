package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/lmittmann/tint"

	"go.aimuz.me/hark/audiocapture"
	"go.aimuz.me/hark/clipboard"
	"go.aimuz.me/hark/config"
	"go.aimuz.me/hark/dictation"
	"go.aimuz.me/hark/hotkey"
	"go.aimuz.me/hark/internal/app"
	"go.aimuz.me/hark/internal/server"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	// onceTimeout bounds single-phrase mode: stop listening if no
	// phrase is finalized within this window.
	onceTimeout = 10 * time.Second

	// calibrateFor is how long the ambient noise measurement runs.
	calibrateFor = 2 * time.Second
)

var (
	flagListDevices = flag.Bool("list-devices", false, "list capture devices and exit")
	flagEngine      = flag.String("engine", "", "transcription engine (whisper-cpp, whisper-api)")
	flagDevice      = flag.Int("device", audiocapture.DefaultDevice, "capture device index (-1 for system default)")
	flagLanguage    = flag.String("language", "", "language hint passed to the engine")
	flagCalibrate   = flag.Bool("calibrate", false, "measure ambient noise, save the silence threshold, and exit")
	flagOnce        = flag.Bool("once", false, "capture one phrase, print it, and exit")
	flagHTTP        = flag.String("http", "", "serve the HTTP API on this address instead of the console menu")
	flagOut         = flag.String("out", "", "append finalized lines to this file")
	flagCopy        = flag.Bool("copy", false, "copy each finalized line to the clipboard")
	flagNotify      = flag.Bool("notify", false, "show a desktop notification for each finalized line")
	flagSaveAudio   = flag.String("save-audio", "", "write each closed segment as a WAV file into this directory")
	flagHotkey      = flag.String("hotkey", "", `push-to-talk key for continuous mode ("none" disables)`)
	flagRefine      = flag.Bool("refine", false, "run the transcript through the configured LLM when recording stops")
	flagVerbose     = flag.Bool("verbose", false, "debug logging")
)

func main() {
	flag.Parse()
	setupLogging(*flagVerbose)

	if err := run(); err != nil {
		slog.Error("hark failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})))
}

func run() error {
	if err := audiocapture.Init(); err != nil {
		return fmt.Errorf("init audio backend: %w", err)
	}
	defer audiocapture.Terminate()

	if *flagListDevices {
		return printDevices()
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		cfg = config.Default()
	}
	applyFlags(cfg)

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	slog.Info("starting hark", "version", version, "commit", commit, "date", date,
		"engine", cfg.Engine, "device", cfg.Device)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	closeSinks, err := wireSinks(svc)
	if err != nil {
		return err
	}
	defer closeSinks()

	switch {
	case *flagCalibrate:
		return runCalibrate(svc)
	case *flagHTTP != "":
		slog.Info("serving http", "addr", *flagHTTP)
		if err := server.New(svc).Run(ctx, *flagHTTP); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case *flagOnce:
		return runOnce(ctx, svc, cfg)
	default:
		return newConsole(svc, cfg).run(ctx)
	}
}

func applyFlags(cfg *config.Config) {
	if *flagEngine != "" {
		cfg.Engine = *flagEngine
	}
	if *flagDevice != audiocapture.DefaultDevice {
		cfg.Device = *flagDevice
	}
	if *flagLanguage != "" {
		cfg.Language = *flagLanguage
	}
	if *flagSaveAudio != "" {
		cfg.SaveAudioDir = *flagSaveAudio
	}
	if *flagHotkey != "" {
		cfg.Hotkey = *flagHotkey
	}
}

// wireSinks subscribes the per-line sinks selected by flags. The
// returned func closes the transcript file, if one was opened.
func wireSinks(svc *app.Service) (func(), error) {
	closer := func() {}

	if *flagOut != "" {
		f, err := os.OpenFile(*flagOut, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open transcript file: %w", err)
		}
		closer = func() {
			if err := f.Close(); err != nil {
				slog.Error("close transcript file", "error", err)
			}
		}
		svc.Subscribe(func(line dictation.TranscriptLine) {
			if _, err := fmt.Fprintf(f, "[%s] %s\n", line.At.Format("15:04:05"), line.Text); err != nil {
				slog.Error("append transcript file", "error", err)
			}
		})
	}

	if *flagCopy {
		if clipboard.Available() {
			svc.Subscribe(func(line dictation.TranscriptLine) {
				if err := clipboard.Copy(line.Text); err != nil {
					slog.Error("copy line to clipboard", "error", err)
				}
			})
		} else {
			slog.Warn("clipboard not supported on this platform")
		}
	}

	if *flagNotify {
		svc.Subscribe(func(line dictation.TranscriptLine) {
			if err := beeep.Notify("hark", line.Text, ""); err != nil {
				slog.Error("notify line", "error", err)
			}
		})
	}

	return closer, nil
}

func printDevices() error {
	devices, err := audiocapture.ListDevices()
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	if len(devices) == 0 {
		fmt.Println("no capture devices found")
		return nil
	}
	fmt.Println("available microphones:")
	for _, d := range devices {
		marker := ""
		if d.Default {
			marker = "  (default)"
		}
		fmt.Printf("  [%d] %s%s\n", d.Index, d.Name, marker)
	}
	return nil
}

func runCalibrate(svc *app.Service) error {
	fmt.Println("measuring ambient noise, stay quiet...")
	threshold, err := svc.Calibrate(calibrateFor)
	if err != nil {
		return fmt.Errorf("calibrate: %w", err)
	}
	if err := svc.SaveConfig(); err != nil {
		slog.Warn("save config", "error", err)
		fmt.Printf("silence threshold %d (not saved)\n", threshold)
		return nil
	}
	fmt.Printf("silence threshold %d saved\n", threshold)
	return nil
}

func runOnce(ctx context.Context, svc *app.Service, cfg *config.Config) error {
	fmt.Fprintln(os.Stderr, "listening for a single phrase...")
	text, err := svc.TranscribeOnce(ctx, cfg.Device, onceTimeout)
	if err != nil {
		return fmt.Errorf("transcribe once: %w", err)
	}
	if text == "" {
		fmt.Println("(nothing heard)")
		return nil
	}
	fmt.Println(maybeRefine(ctx, svc, text))
	return nil
}

// maybeRefine runs text through the configured LLM when -refine is
// set. Any refinement failure falls back to the raw text.
func maybeRefine(ctx context.Context, svc *app.Service, text string) string {
	if !*flagRefine {
		return text
	}
	result, err := svc.Refine(ctx, text)
	if err != nil {
		slog.Error("refine transcript", "error", err)
		return text
	}
	return result.Text
}

// ─────────────────────────────────────────────────────────────────────────────
// Interactive console
// ─────────────────────────────────────────────────────────────────────────────

// Console is the interactive menu shell. A single goroutine owns stdin
// and feeds input so menu reads and stop-waits never compete.
type Console struct {
	svc   *app.Service
	cfg   *config.Config
	input chan string
}

func newConsole(svc *app.Service, cfg *config.Config) *Console {
	c := &Console{svc: svc, cfg: cfg, input: make(chan string)}
	go func() {
		defer close(c.input)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			c.input <- strings.TrimSpace(sc.Text())
		}
	}()
	return c
}

// run loops the menu until the user quits, stdin closes, or the
// context is canceled.
func (c *Console) run(ctx context.Context) error {
	for {
		c.printMenu()
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case cmd, ok := <-c.input:
			if !ok {
				return nil
			}
			switch strings.ToLower(cmd) {
			case "":
			case "q", "quit", "exit":
				return nil
			case "c":
				c.continuous(ctx)
			case "s":
				c.once(ctx)
			case "m":
				if err := printDevices(); err != nil {
					slog.Error("list devices", "error", err)
				}
			case "h":
				c.printHistory()
			case "r":
				c.refine(ctx)
			default:
				c.selectEngine(cmd)
			}
		}
	}
}

func (c *Console) printMenu() {
	st := c.svc.Status()
	fmt.Println()
	fmt.Printf("hark %s (%d lines)\n", version, st.Lines)
	fmt.Println("engines:")
	for i, e := range c.svc.Engines() {
		state := "not ready"
		if e.IsReady {
			state = "ready"
		}
		active := ""
		if e.Active {
			active = "  * active"
		}
		fmt.Printf("  [%d] %-24s %s%s\n", i+1, e.DisplayName, state, active)
	}
	fmt.Println("commands: c continuous, s single phrase, m microphones, h history, r refine, q quit")
	fmt.Print("> ")
}

func (c *Console) selectEngine(cmd string) {
	engines := c.svc.Engines()
	n, err := strconv.Atoi(cmd)
	if err != nil || n < 1 || n > len(engines) {
		fmt.Println("unknown command")
		return
	}

	name := engines[n-1].Name
	if err := c.svc.SelectEngine(name); err != nil {
		slog.Error("select engine", "engine", name, "error", err)
		return
	}
	if err := c.svc.SaveConfig(); err != nil {
		slog.Warn("save config", "error", err)
	}
	fmt.Printf("engine set to %s\n", name)
}

func (c *Console) continuous(ctx context.Context) {
	printer := c.svc.Subscribe(func(line dictation.TranscriptLine) {
		fmt.Printf("[%s] %s\n", line.At.Format("15:04:05"), line.Text)
	})
	defer c.svc.Unsubscribe(printer)

	if err := c.svc.Start(c.cfg.Device); err != nil {
		slog.Error("start recording", "error", err)
		return
	}

	stopHotkey := c.startHotkey()
	defer stopHotkey()

	if key := c.hotkeyName(); key != "" {
		fmt.Printf("listening... Enter stops, %s toggles\n", key)
	} else {
		fmt.Println("listening... press Enter to stop")
	}

	select {
	case <-ctx.Done():
	case <-c.input:
	}
	c.svc.Stop()
	fmt.Printf("stopped, %d lines\n", c.svc.Status().Lines)

	if *flagRefine {
		c.refine(ctx)
	}
}

func (c *Console) once(ctx context.Context) {
	fmt.Println("listening for a single phrase...")
	text, err := c.svc.TranscribeOnce(ctx, c.cfg.Device, onceTimeout)
	if err != nil {
		slog.Error("transcribe once", "error", err)
		return
	}
	if text == "" {
		fmt.Println("(nothing heard)")
		return
	}
	fmt.Println(maybeRefine(ctx, c.svc, text))
}

func (c *Console) printHistory() {
	entries, err := c.svc.History(20)
	if errors.Is(err, app.ErrHistoryUnavailable) {
		fmt.Println("history archive unavailable")
		return
	}
	if err != nil {
		slog.Error("read history", "error", err)
		return
	}
	if len(entries) == 0 {
		fmt.Println("history is empty")
		return
	}
	for _, e := range entries {
		fmt.Printf("  %s  %s\n", e.At.Format("01-02 15:04"), e.Text)
	}
}

func (c *Console) refine(ctx context.Context) {
	result, err := c.svc.Refine(ctx, "")
	switch {
	case errors.Is(err, app.ErrNothingToRefine):
		fmt.Println("nothing to refine yet")
	case errors.Is(err, app.ErrNoProvider):
		fmt.Println("no llm provider configured")
	case err != nil:
		slog.Error("refine transcript", "error", err)
	default:
		fmt.Println("refined:")
		fmt.Println(result.Text)
	}
}

func (c *Console) hotkeyName() string {
	if c.cfg.Hotkey == "none" {
		return ""
	}
	return c.cfg.Hotkey
}

// startHotkey binds the push-to-talk key for the duration of
// continuous mode. Returns a no-op stop func when no key is configured
// or the hook cannot start.
func (c *Console) startHotkey() func() {
	key := c.hotkeyName()
	if key == "" {
		return func() {}
	}

	hk := hotkey.NewHotkeyManager(key, func() {
		if c.svc.Status().Recording {
			c.svc.Stop()
			fmt.Println("(hotkey) paused")
			return
		}
		if err := c.svc.Start(c.cfg.Device); err != nil {
			slog.Error("hotkey start", "error", err)
			return
		}
		fmt.Println("(hotkey) listening")
	})
	if err := hk.Start(); err != nil {
		slog.Warn("hotkey unavailable", "key", key, "error", err)
		return func() {}
	}
	return hk.Stop
}
