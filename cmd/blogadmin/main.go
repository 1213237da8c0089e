package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/eringen/blogadmin"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:           "blogadmin",
		Short:         "blogadmin - blog post administration backed by object storage",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	root.AddCommand(newServeCmd(v), newVersionCmd())
	return root
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(v)
			logger, err := newLogger(v.GetString("log_level"))
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			app := blogadmin.New(cfg, blogadmin.ViewFuncs{}, blogadmin.WithLogger(logger))
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Start(ctx)
		},
	}

	f := cmd.Flags()
	f.String("addr", ":3000", "listen address")
	f.String("base-url", "http://localhost:3000", "external URL of the server")
	f.String("site-name", "Blog Admin", "name shown in page titles")
	f.String("storage-provider", blogadmin.ProviderS3, "storage provider: s3|gcs")
	f.String("storage-endpoint", "", "S3 compatible or GCS endpoint")
	f.String("bucket-name", "", "bucket holding the post list and images")
	f.String("file-key", "", "object key of the post list document")
	f.String("region", "", "bucket region (s3)")
	f.String("access-key-id", "", "access key id (s3)")
	f.String("secret-access-key", "", "secret access key (s3)")
	f.Duration("storage-timeout", 30*time.Second, "timeout of one storage request")
	f.String("consistency", "last-writer-wins", "write policy: last-writer-wins|optimistic")
	f.String("google-client-id", "", "Google Identity Services client id")
	f.String("allowed-email", "", "email allowed to sign in")
	f.String("allowed-name", "", "first name allowed to sign in")
	f.String("session-secret", "", "session cookie signing secret")
	f.Bool("cookie-secure", false, "mark cookies Secure (HTTPS)")
	f.String("log-level", "info", "log level: debug|info|warn|error")

	f.VisitAll(func(flag *pflag.Flag) {
		bindConfig(v, strings.ReplaceAll(flag.Name, "-", "_"), flag)
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the blogadmin version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "blogadmin %s\n", version)
		},
	}
}

func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("blogadmin")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "blogadmin"))
		}
	}
	v.SetEnvPrefix("BLOGADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func bindConfig(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// loadConfig reads the server configuration from v.
func loadConfig(v *viper.Viper) blogadmin.Config {
	return blogadmin.Config{
		SiteName:        v.GetString("site_name"),
		BaseURL:         v.GetString("base_url"),
		Addr:            v.GetString("addr"),
		StorageProvider: v.GetString("storage_provider"),
		BucketName:      v.GetString("bucket_name"),
		FileKey:         v.GetString("file_key"),
		Region:          v.GetString("region"),
		AccessKeyID:     v.GetString("access_key_id"),
		SecretAccessKey: v.GetString("secret_access_key"),
		StorageEndpoint: v.GetString("storage_endpoint"),
		StorageTimeout:  v.GetDuration("storage_timeout"),
		Consistency:     v.GetString("consistency"),
		GoogleClientID:  v.GetString("google_client_id"),
		AllowedEmail:    v.GetString("allowed_email"),
		AllowedName:     v.GetString("allowed_name"),
		SessionSecret:   v.GetString("session_secret"),
		CookieSecure:    v.GetBool("cookie_secure"),
	}
}

// newLogger builds a production JSON logger, or a development console
// logger at debug level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if lvl.Level() == zap.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	return cfg.Build()
}
