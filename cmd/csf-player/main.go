package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lixenwraith/csf-player/audio"
	"github.com/lixenwraith/csf-player/content"
	"github.com/lixenwraith/csf-player/core"
	"github.com/lixenwraith/csf-player/engine"
	"github.com/lixenwraith/csf-player/terminal"
)

var (
	debugFlag    = flag.Bool("debug", false, "Write logs to logs/csf-player.log")
	logLevelFlag = flag.String("log-level", "", "Log level: debug, info, warn, error (default $CSF_LOG_LEVEL or debug)")
	volumeFlag   = flag.Float64("volume", 1.0, "Master volume, 0.0 to 1.0")
	muteFlag     = flag.Bool("mute", false, "Play the animation without audio")
	lazyFlag     = flag.Bool("lazy", false, "Read assets on demand instead of preloading them")
)

func main() {
	// Panic Recovery: Ensure terminal is reset even if playback crashes
	defer func() {
		if r := recover(); r != nil {
			core.HandleCrash(r)
		}
	}()

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <score-root>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if logFile := setupLogging(*debugFlag, resolveLevel(*logLevelFlag)); logFile != nil {
		defer logFile.Close()
	}

	if err := run(flag.Arg(0)); err != nil {
		slog.Error("playback failed", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "csf-player: %v\n", err)
		os.Exit(1)
	}
}

func run(dir string) error {
	open := content.OpenEager
	if *lazyFlag {
		open = content.Open
	}
	root, err := open(dir)
	if err != nil {
		return err
	}
	tracks := root.Index()

	screen := terminal.NewScreen()
	core.SetCrashCleanup(screen.Leave)
	defer core.SetCrashCleanup(nil)

	var opts []engine.Option
	if !*muteFlag {
		music := audio.NewMusicPlayer(*volumeFlag, nil)
		opts = append(opts, engine.WithAudio(func(path string) (io.Closer, error) {
			h, err := music.Start(path)
			if err != nil {
				return nil, err
			}
			return h, nil
		}))
	}

	player, err := engine.NewPlayer(engine.PlayerConfig{
		BPM:         root.Meta.BPM,
		AudioPath:   root.AudioPath(),
		AudioOffset: root.Meta.AudioOffset(),
	}, tracks, screen, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return player.Run(ctx)
}
