package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"libassist-backend/lib/configutil"
	"libassist-backend/lib/restyutil"
	"libassist-backend/lib/scrapers/ebookcentral"
	"libassist-backend/lib/serviceutil"
	"libassist-backend/lib/telemetry"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`

	// overrides for a non-Ridley deployment, zero values take the
	// built-in defaults
	BaseUrl      string `json:"base_url"`
	LibraryId    string `json:"library_id"`
	EZproxyUrl   string `json:"ezproxy_url"`
	AuthEntryUrl string `json:"auth_entry_url"`
}

var (
	verbose bool
	client  *ebookcentral.Client
)

var rootCmd = &cobra.Command{
	Use:   "libassist-cli",
	Short: "libassist-cli searches and downloads ebooks from the library's Ebook Central portal.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level:      slog.LevelDebug,
				TimeFormat: time.Kitchen,
			})))
		}

		cfg, err := configutil.ReadConfig[Config]("config.json5")
		if err != nil && !os.IsNotExist(err) {
			serviceutil.Fatal("failed to read config", err)
		}

		opts := ebookcentral.ClientOptions{
			BaseUrl:      cfg.BaseUrl,
			LibraryId:    cfg.LibraryId,
			EZproxyUrl:   cfg.EZproxyUrl,
			AuthEntryUrl: cfg.AuthEntryUrl,
			Username:     cfg.Username,
			Password:     cfg.Password,
		}
		if verbose {
			opts.InstrumentOutput = restyutil.NewFilesystemOutput(".libassist/resty")
		}

		client, err = ebookcentral.NewClient(cmd.Context(), opts)
		if err != nil {
			serviceutil.Fatal("failed to initialize portal client", err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging plus raw HTTP capture under .libassist/resty")
}

func Execute(ctx context.Context) {
	tel, err := telemetry.SetupFromEnv(ctx, "libassist-cli")
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	defer tel.Shutdown(context.Background())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
