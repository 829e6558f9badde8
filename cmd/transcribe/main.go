package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rt-transcribe/internal/config"
	"rt-transcribe/internal/events"
	"rt-transcribe/internal/language"
	"rt-transcribe/internal/observability"
	"rt-transcribe/internal/observability/logging"
	"rt-transcribe/internal/output"
	"rt-transcribe/internal/service/replay"
	"rt-transcribe/internal/service/session"
	"rt-transcribe/internal/translate"
)

var (
	flagInput        string
	flagLanguage     string
	flagOutput       string
	flagTranslate    bool
	flagPrimaryLang  string
	flagForeignLang  string
	flagAPIKey       string
	flagConfigFile   string
	flagDebug        bool
)

func main() {
	root := &cobra.Command{
		Use:   "transcribe",
		Short: "Realtime speech transcription with optional two-way translation",
		Long: "Streams audio to the transcription backend and prints segments as they\n" +
			"finalize. Reads raw 16 kHz mono s16le PCM from stdin by default, or\n" +
			"replays an audio file given with --input.",
		SilenceUsage: true,
		RunE:         runTranscribe,
	}

	root.Flags().StringVarP(&flagInput, "input", "i", "-", "audio file to replay, or '-' for stdin PCM")
	root.Flags().StringVarP(&flagLanguage, "language", "l", "auto", "language hint ('auto' hints the configured pair)")
	root.Flags().StringVarP(&flagOutput, "output", "o", "text", "output format: text, json or csv")
	root.Flags().BoolVarP(&flagTranslate, "translate", "t", false, "enable two-way translation between the language pair")
	root.PersistentFlags().StringVar(&flagPrimaryLang, "primary-language", "", "primary language code (default from PRIMARY_LANGUAGE)")
	root.PersistentFlags().StringVar(&flagForeignLang, "foreign-language", "", "foreign language code (default from FOREIGN_LANGUAGE)")
	root.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "backend API key (default from SONIOX_API_KEY)")
	root.PersistentFlags().StringVar(&flagConfigFile, "config", "", "optional YAML config file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	root.AddCommand(newTranslateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges file, environment and flag configuration. Flags win.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flagConfigFile != "" {
		cfg, err = config.LoadFile(flagConfigFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Load()
	}
	if flagPrimaryLang != "" {
		cfg.Languages.Primary = language.Normalize(flagPrimaryLang)
	}
	if flagForeignLang != "" {
		cfg.Languages.Foreign = language.Normalize(flagForeignLang)
	}
	if flagAPIKey != "" {
		cfg.Soniox.APIKey = flagAPIKey
	}
	if flagDebug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func initLogging(cfg *config.Config) {
	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	initLogging(cfg)
	log := logging.WithComponent("cli")

	if cfg.Soniox.APIKey == "" {
		return fmt.Errorf("no API key: set SONIOX_API_KEY or pass --api-key")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		obs := observability.NewServer(cfg.Metrics.Addr)
		obs.Start()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			obs.Shutdown(shutCtx)
		}()
	}

	writer, err := output.New(output.Format(flagOutput), os.Stdout)
	if err != nil {
		return err
	}

	continuous := flagInput == "-" || flagInput == ""
	mgr := session.New(session.Config{
		URL:    cfg.Soniox.URL,
		APIKey: cfg.Soniox.APIKey,
		Params: session.Params{
			PrimaryLanguage: cfg.Languages.Primary,
			ForeignLanguage: cfg.Languages.Foreign,
			LanguageHint:    language.Normalize(flagLanguage),
			Translate:       flagTranslate,
			Continuous:      continuous,
			Model:           cfg.Soniox.Model,
		},
	})

	if err := writer.WriteConfig(cfg.Languages.Primary, cfg.Languages.Foreign, flagTranslate); err != nil {
		return err
	}

	if !continuous {
		return replayFile(ctx, mgr, writer, flagInput)
	}

	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		Principal:    cfg.Kafka.Principal,
	})
	defer publisher.Close()

	log.Info().Str("session_id", mgr.ID()).Msg("Starting continuous transcription from stdin")

	source := stdinSource(ctx, os.Stdin)
	segments, err := mgr.Run(ctx, source)
	if err != nil {
		return err
	}

	for seg := range segments {
		if err := writer.WriteSegment(seg); err != nil {
			return err
		}
		if err := publisher.PublishSegment(ctx, mgr.ID(), seg); err != nil {
			log.Warn().Err(err).Msg("Failed to publish segment")
		}
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	return mgr.Err()
}

func replayFile(ctx context.Context, mgr *session.Manager, writer output.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	blocks, err := replay.Transcribe(ctx, mgr, data)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if err := writer.WriteBlock(b); err != nil {
			return err
		}
	}
	return writer.Flush()
}

// stdinSource reads raw PCM from r in fixed-size chunks. The channel
// closes on EOF or read error; cancellation unblocks pending sends.
func stdinSource(ctx context.Context, r io.Reader) <-chan []byte {
	out := make(chan []byte)
	go func() {
		defer close(out)
		for {
			buf := make([]byte, session.ChunkSize)
			n, err := io.ReadFull(r, buf)
			if n > 0 {
				select {
				case out <- buf[:n]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

func newTranslateCmd() *cobra.Command {
	var source, target string

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate stdin lines between the configured language pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			initLogging(cfg)

			if cfg.Translate.APIKey == "" {
				return fmt.Errorf("no API key: set OPENAI_API_KEY")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tr := translate.New(translate.Config{
				APIKey: cfg.Translate.APIKey,
				Model:  cfg.Translate.Model,
				Pair: translate.Pair{
					Primary: cfg.Languages.Primary,
					Foreign: cfg.Languages.Foreign,
				},
			})

			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				line := scanner.Text()
				if line == "" {
					continue
				}
				res, err := tr.Translate(ctx, line, language.Normalize(source), language.Normalize(target))
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					// One failed line must not kill the stream.
					fmt.Printf("[translation error: %v]\n", err)
					continue
				}
				fmt.Printf("[%s -> %s] %s\n", res.SourceLanguage, res.TargetLanguage, res.Text)
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "source language (detected when empty)")
	cmd.Flags().StringVar(&target, "target", "", "target language (other half of the pair when empty)")
	return cmd
}
