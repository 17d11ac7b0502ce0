package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/ceph-keysync/internal/config"
	"github.com/oshokin/ceph-keysync/internal/logger"
	"github.com/oshokin/ceph-keysync/internal/service/syncer"
	"github.com/oshokin/ceph-keysync/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// fsid identifies the cluster instance to sync artifacts for.
	fsid string

	// fetchRoot is the root of the staging tree.
	fetchRoot string

	// clusterName templates the artifact filenames.
	clusterName string

	// copyAdminKey enables syncing the admin keyring and cluster conf.
	copyAdminKey bool

	// destRoot prefixes destination paths (chroot/image builds).
	destRoot string

	// pollInterval is the delay between staging existence checks.
	pollInterval time.Duration

	// stagingTimeout bounds the wait for each staging artifact.
	stagingTimeout time.Duration

	// logLevel sets the minimum level of emitted log messages.
	logLevel string

	// rootCmd represents the base command for syncing bootstrap artifacts.
	rootCmd = &cobra.Command{
		Use:   "keysync",
		Short: "Copy cluster bootstrap artifacts from the staging tree to this node",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			options := &syncer.Options{
				ConfigPath:     configPath,
				Fsid:           fsid,
				FetchRoot:      fetchRoot,
				Cluster:        clusterName,
				CopyAdminKey:   copyAdminKey,
				DestRoot:       destRoot,
				PollInterval:   pollInterval,
				StagingTimeout: stagingTimeout,
			}

			return syncer.Run(ctx, options)
		},
	}
)

// Execute runs the keysync CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+" if present)")
	rootCmd.Flags().StringVar(&fsid, "fsid", "", "cluster fsid namespacing the staging tree")
	rootCmd.Flags().StringVar(&fetchRoot, "fetch-root", "", "root of the staging tree")
	rootCmd.Flags().StringVar(&clusterName, "cluster", "", "cluster name used to template artifact filenames")
	rootCmd.Flags().BoolVar(&copyAdminKey, "copy-admin-key", false,
		"also sync the admin keyring and cluster conf (enables the setting when given)")
	rootCmd.Flags().StringVar(&destRoot, "dest-root", "", "prefix for destination paths")
	rootCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "delay between staging existence checks")
	rootCmd.Flags().DurationVar(&stagingTimeout, "timeout", 0,
		"maximum wait per staging artifact (0 waits until cancelled)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug, info, warn, error)")
}
