package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/ymdl/config"
	"github.com/xeptore/ymdl/constant"
	"github.com/xeptore/ymdl/errutil"
	"github.com/xeptore/ymdl/log"
)

const (
	flagConfigFilePath = "config"
	flagToken          = "token"
	flagOutput         = "output"
	flagCodec          = "codec"
	flagTrack          = "track"
	flagPlain          = "plain"
	flagFlawDump       = "flaw-dump"
	flagLimit          = "limit"
	flagRun            = "run"

	envToken  = "YANDEX_MUSIC_TOKEN"
	envConfig = "CONFIG"

	logFileName = "ymdl.log"
)

var (
	errRunFailed    = errors.New("one or more playlists were not downloaded")
	errTokenMissing = errors.New("token is required. set it with --token or the " + envToken + " environment variable")
)

func main() {
	logger := log.NewPretty(os.Stderr).Level(zerolog.InfoLevel)
	if err := godotenv.Load(); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug().Msg(".env file was not found")
		} else {
			logger.Fatal().Err(err).Msg("Failed to load .env file")
		}
	}

	var flawDumpPath string

	//nolint:exhaustruct
	app := &cli.App{
		Name:     "ymdl",
		Version:  constant.Version,
		Compiled: constant.CompileTime,
		Suggest:  true,
		Usage:    "Yandex Music playlist downloader",
		Flags: []cli.Flag{
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:    flagConfigFilePath,
				Aliases: []string{"c"},
				Usage:   "Config file path",
			},
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:    flagToken,
				Aliases: []string{"t"},
				Usage:   "Yandex Music OAuth token",
				EnvVars: []string{envToken},
			},
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:        flagFlawDump,
				Usage:       "Write the details of a fatal error as YAML to this file",
				Destination: &flawDumpPath,
			},
		},
		Commands: []*cli.Command{
			//nolint:exhaustruct
			{
				Name:      "download",
				Aliases:   []string{"d"},
				Usage:     "Download one or more playlists",
				ArgsUsage: "<playlist link | owner:id | liked>...",
				Action:    runDownload,
				Flags: []cli.Flag{
					//nolint:exhaustruct
					&cli.StringFlag{
						Name:    flagOutput,
						Aliases: []string{"o"},
						Usage:   "Download base directory",
					},
					//nolint:exhaustruct
					&cli.StringFlag{
						Name:    flagCodec,
						Aliases: []string{"q"},
						Usage:   "Preferred codec: mp3, flac or aac",
					},
					//nolint:exhaustruct
					&cli.StringSliceFlag{
						Name:  flagTrack,
						Usage: "Only download the track with this id. Can be repeated",
					},
					//nolint:exhaustruct
					&cli.BoolFlag{
						Name:  flagPlain,
						Usage: "Report progress as log lines instead of the interactive view",
					},
				},
			},
			//nolint:exhaustruct
			{
				Name:   "whoami",
				Usage:  "Check the token and print the account it belongs to",
				Action: runWhoami,
			},
			//nolint:exhaustruct
			{
				Name:   "history",
				Usage:  "List recent runs recorded in the ledger",
				Action: runHistory,
				Flags: []cli.Flag{
					//nolint:exhaustruct
					&cli.IntFlag{
						Name:  flagLimit,
						Usage: "Number of runs to list",
						Value: 20,
					},
					//nolint:exhaustruct
					&cli.StringFlag{
						Name:  flagRun,
						Usage: "Show per track outcomes of the run with this id",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); nil != err {
		switch {
		case errors.Is(err, context.Canceled):
			logger.Warn().Msg("Application was canceled")
			os.Exit(130)
		case errors.Is(err, errRunFailed):
			logger.Fatal().Err(err).Msg("One or more playlists were not downloaded")
		case errutil.IsFlaw(err):
			dumpFlaw(logger, flawDumpPath, err)
			logger.Fatal().Func(log.Flaw(err)).Msg("Application exited with flaw")
		default:
			logger.Fatal().Err(err).Msg("Application exited with error")
		}
	}
}

func dumpFlaw(logger zerolog.Logger, filePath string, err error) {
	if filePath == "" {
		return
	}
	flawErr := new(flaw.Flaw)
	if !errors.As(err, &flawErr) {
		return
	}
	b, err := errutil.FlawToYAML(flawErr)
	if nil != err {
		logger.Error().Func(log.Flaw(err)).Msg("Failed to convert flaw to YAML")
		return
	}
	if err := os.WriteFile(filePath, b, 0o0600); nil != err {
		logger.Error().Err(err).Str("path", filePath).Msg("Failed to write flaw dump")
		return
	}
	logger.Info().Str("path", filePath).Msg("Flaw dump written")
}

func loadConfig(cliCtx *cli.Context, logger zerolog.Logger) (*config.Config, error) {
	cfgFilePath := cliCtx.String(flagConfigFilePath)
	cfgEnv := os.Getenv(envConfig)
	switch {
	case cfgFilePath != "" && cfgEnv != "":
		return nil, errors.New("config file path and config environment variable are both set. specify only one")
	case cfgFilePath != "":
		logger.Debug().Str("config_file_path", cfgFilePath).Msg("Loading config from file")
		cfg, err := config.FromFile(cfgFilePath)
		if nil != err {
			return nil, fmt.Errorf("failed to load config file: %v", err)
		}
		return cfg, nil
	case cfgEnv != "":
		logger.Debug().Msg("Loading config from environment variable")
		cfg, err := config.FromString(cfgEnv)
		if nil != err {
			return nil, fmt.Errorf("failed to load config from environment variable: %v", err)
		}
		return cfg, nil
	default:
		logger.Debug().Msg("Using default config")
		return config.Default(), nil
	}
}

// session holds what every command needs: the effective config, the token
// and a logger writing to the place the command asked for.
type session struct {
	cfg     *config.Config
	token   string
	logger  zerolog.Logger
	closers []io.Closer
}

func (s *session) Close() {
	for _, c := range s.closers {
		_ = c.Close()
	}
}

type sessionOptions struct {
	requireToken bool
	// logToFile sends logs to the log file in the download directory, leaving
	// the terminal to the progress view.
	logToFile bool
}

func newSession(cliCtx *cli.Context, opts sessionOptions) (*session, error) {
	bootstrap := log.NewPretty(os.Stderr).Level(zerolog.InfoLevel)
	cfg, err := loadConfig(cliCtx, bootstrap)
	if nil != err {
		return nil, err
	}

	if v := cliCtx.String(flagOutput); v != "" {
		cfg.DownloadBaseDir = v
	}
	if v := cliCtx.String(flagCodec); v != "" {
		cfg.PreferredCodec = v
	}
	if err := cfg.Validate(); nil != err {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}

	s := &session{
		cfg:     cfg,
		token:   cliCtx.String(flagToken),
		logger:  log.New(os.Stderr, true, cfg.LogLevel),
		closers: nil,
	}
	if opts.requireToken && s.token == "" {
		return nil, errTokenMissing
	}

	if opts.logToFile {
		if err := os.MkdirAll(cfg.DownloadBaseDir, 0o0755); nil != err {
			return nil, fmt.Errorf("failed to create download base directory: %v", err)
		}
		logFilePath := filepath.Join(cfg.DownloadBaseDir, logFileName)
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o0644)
		if nil != err {
			return nil, fmt.Errorf("failed to open log file: %v", err)
		}
		s.closers = append(s.closers, f)
		s.logger = log.New(f, false, cfg.LogLevel)
	}

	s.logger.Debug().
		Str("download_base_dir", cfg.DownloadBaseDir).
		Str("preferred_codec", cfg.PreferredCodec).
		Int("batch_size", cfg.BatchSize).
		Int("max_retries", cfg.MaxRetries).
		Dur("track_pacing", cfg.TrackPacing).
		Int("parallel_runs", cfg.ParallelRuns).
		Time("started_at", time.Now()).
		Msg("Session started")
	return s, nil
}
