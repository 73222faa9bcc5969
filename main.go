package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/forslund/spotify-skill/cache"
	"github.com/forslund/spotify-skill/config"
	"github.com/forslund/spotify-skill/logging"
	"github.com/forslund/spotify-skill/resolver"
	"github.com/forslund/spotify-skill/skill"
	"github.com/forslund/spotify-skill/spotify"
)

// Version information - set during build
var version = "dev"

// Exit codes
const (
	exitCodeSuccess     = 0
	exitCodeNoMatch     = 1
	exitCodeConfigError = 2
	exitCodeClientError = 3
)

// errNoMatch reports that the phrase resolved to nothing. Mapped to its own
// exit code so scripts can tell "no match" from a real failure.
var errNoMatch = errors.New("no match found")

// options holds the parsed command line flags
type options struct {
	authorize bool
	phrase    string
	media     string
	play      bool
	device    string
	status    bool
	debug     bool
}

// Application wires the gateway, resolver and facade together
type Application struct {
	config *config.Config
	facade *skill.Facade
	log    *zap.Logger
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	client, err := spotify.NewClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify client: %w", err)
	}

	res := resolver.New(client, cache.New(), logger, resolver.Options{
		DefaultDeviceName: cfg.Spotify.DefaultDevice,
		HostDeviceName:    cfg.Spotify.DeviceName,
		PlaylistTTL:       cfg.Cache.PlaylistTTL,
		SavedTracksTTL:    cfg.Cache.SavedTracksTTL,
		DeviceTTL:         cfg.Cache.DeviceTTL,
	})

	return &Application{
		config: cfg,
		facade: skill.New(res, client, logger),
		log:    logger,
	}, nil
}

// Run executes one query: resolve the phrase, print the match, and start
// playback when asked to.
func (app *Application) Run(ctx context.Context, opts options) error {
	if opts.status {
		return app.printStatus(ctx)
	}

	result, ok := app.facade.Search(ctx, opts.phrase, mediaHint(opts.media))
	if !ok {
		fmt.Println("No match found")
		return errNoMatch
	}

	app.printResult(result)

	if !opts.play {
		return nil
	}

	var err error
	if opts.device != "" {
		err = app.facade.PlayOn(ctx, result.Match, opts.device)
	} else {
		err = app.facade.PlayMatch(ctx, result.Match)
	}
	if err != nil {
		app.log.Error("playback failed",
			zap.String("dialog", skill.DialogKey(err)),
			zap.Error(err))
		return err
	}

	fmt.Printf("Playing: %s\n", result.Entry.Title)
	return nil
}

// printStatus reports what is currently playing.
func (app *Application) printStatus(ctx context.Context) error {
	track, artist, err := app.facade.SongInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to get playback status: %w", err)
	}
	album, _, err := app.facade.AlbumInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to get playback status: %w", err)
	}
	fmt.Printf("Now playing: %s - %s (%s)\n", artist, track, album)
	return nil
}

// printResult displays the resolved match and its track list.
func (app *Application) printResult(result skill.Result) {
	fmt.Printf("Matched %s: %s (confidence %d, level %d)\n",
		result.Match.Kind, result.Entry.Title, result.Match.Confidence, result.Level)
	if result.Match.URI != "" {
		fmt.Printf("URI: %s\n", result.Match.URI)
	}
	if len(result.Entry.Playlist) > 0 {
		fmt.Println(strings.Repeat("-", 60))
		for i, t := range result.Entry.Playlist {
			fmt.Printf("%3d. %s - %s\n", i+1, orDash(t.Artist), t.Title)
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// exitCode maps a Run error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitCodeSuccess
	case errors.Is(err, errNoMatch):
		return exitCodeNoMatch
	default:
		return exitCodeClientError
	}
}

// mediaHint maps the -media flag to a resolver hint.
func mediaHint(media string) resolver.MediaHint {
	switch strings.ToLower(media) {
	case "music":
		return resolver.HintMusic
	case "podcast", "show":
		return resolver.HintPodcast
	default:
		return resolver.HintGeneric
	}
}

// parseFlags parses command line flags and returns config overrides
func parseFlags() (options, map[string]string) {
	var opts options
	flag.BoolVar(&opts.authorize, "authorize", false, "Run the one-time Spotify authorization flow")
	flag.StringVar(&opts.phrase, "query", "", "Phrase to resolve, e.g. 'bad magic by motorhead'")
	flag.StringVar(&opts.media, "media", "", "Media type hint: music or podcast")
	flag.BoolVar(&opts.play, "play", false, "Start playback of the best match")
	flag.StringVar(&opts.device, "device", "", "Playback device name (fuzzy matched)")
	flag.BoolVar(&opts.status, "status", false, "Show what is currently playing")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	var defaultDevice string
	flag.StringVar(&defaultDevice, "default-device", "", "Preferred playback device (overrides SPOTIFY_DEFAULT_DEVICE)")

	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Parse()

	if showVersion {
		fmt.Printf("spotify-skill version %s\n", version)
		os.Exit(exitCodeSuccess)
	}

	overrides := map[string]string{
		"SPOTIFY_DEFAULT_DEVICE": defaultDevice,
	}
	if opts.debug {
		overrides["LOG_LEVEL"] = "debug"
	}
	return opts, overrides
}

func main() {
	opts, overrides := parseFlags()

	cfg, err := config.LoadWithOverrides(overrides)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(exitCodeConfigError)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Printf("Failed to set up logging: %v", err)
		os.Exit(exitCodeConfigError)
	}
	defer logger.Sync()

	ctx := context.Background()

	if opts.authorize {
		if err := spotify.Authorize(ctx, cfg, logger); err != nil {
			logger.Fatal("authorization failed", zap.Error(err))
		}
		return
	}

	if opts.phrase == "" && !opts.status {
		fmt.Println("Nothing to do: pass -query 'some phrase', -status, or -authorize")
		flag.Usage()
		os.Exit(exitCodeConfigError)
	}

	app, err := NewApplication(cfg, logger)
	if err != nil {
		logger.Error("failed to create application", zap.Error(err))
		os.Exit(exitCodeClientError)
	}

	if err := app.Run(ctx, opts); err != nil {
		if !errors.Is(err, errNoMatch) {
			logger.Error("run failed", zap.Error(err))
		}
		logger.Sync()
		os.Exit(exitCode(err))
	}
}
