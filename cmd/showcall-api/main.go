package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/backup"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/config"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/cues"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/database"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/hub"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/logging"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/production"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/server"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/tagstore"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/timecode"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "showcall-api",
		Short: "Live production notes backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().StringSlice("allowed-origins", nil, "Browser origins allowed to connect (default any)")
	cmd.PersistentFlags().Bool("osc-enabled", defaults.GetBool("osc.enabled"), "Listen for OSC cue notifications")
	cmd.PersistentFlags().String("osc-address", defaults.GetString("osc.address"), "OSC UDP listen address")
	cmd.PersistentFlags().String("osc-act-prefix", defaults.GetString("osc.act_prefix"), "OSC address prefix carrying act names")
	cmd.PersistentFlags().String("mtc-address", defaults.GetString("mtc.address"), "UDP listen address for raw MIDI timecode (empty disables)")
	cmd.PersistentFlags().String("backup-dir", defaults.GetString("backup.dir"), "Directory holding the snapshot database")
	cmd.PersistentFlags().Int("backup-interval-seconds", defaults.GetInt("backup.interval_seconds"), "Seconds between periodic snapshots")
	cmd.PersistentFlags().Int("backup-retention-hours", defaults.GetInt("backup.retention_hours"), "Hours snapshots are kept")
	cmd.PersistentFlags().Bool("restore-on-start", defaults.GetBool("backup.restore_on_start"), "Restore notes from the latest snapshot at start")
	cmd.PersistentFlags().String("tags-path", defaults.GetString("tags.path"), "Tag registry JSON file")
	cmd.PersistentFlags().Int("anonymous-timeout-minutes", defaults.GetInt("sessions.anonymous_timeout_minutes"), "Minutes an unnamed participant may stay connected")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "http.allowed_origins", "allowed-origins")
	bindFlag(cmd, "osc.enabled", "osc-enabled")
	bindFlag(cmd, "osc.address", "osc-address")
	bindFlag(cmd, "osc.act_prefix", "osc-act-prefix")
	bindFlag(cmd, "mtc.address", "mtc-address")
	bindFlag(cmd, "backup.dir", "backup-dir")
	bindFlag(cmd, "backup.interval_seconds", "backup-interval-seconds")
	bindFlag(cmd, "backup.retention_hours", "backup-retention-hours")
	bindFlag(cmd, "backup.restore_on_start", "restore-on-start")
	bindFlag(cmd, "tags.path", "tags-path")
	bindFlag(cmd, "sessions.anonymous_timeout_minutes", "anonymous-timeout-minutes")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) (runErr error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.BackupDatabasePath(), logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	snapshots, err := backup.NewStore(db)
	if err != nil {
		return err
	}
	tagStore, err := tagstore.New(appConfig.TagsPath, logger.Named("tagstore"))
	if err != nil {
		return err
	}

	state, err := production.NewState(production.StateConfig{
		Clock:      time.Now,
		IDProvider: production.NewUUIDProvider(),
		Logger:     logger.Named("production"),
	})
	if err != nil {
		return err
	}
	recoveredNotes, recoveredTags, err := loadRecoveredState(ctx, snapshots, tagStore, appConfig.RestoreOnStart, logger)
	if err != nil {
		return err
	}

	faults := make(chan error, 4)
	reportFault := func(err error) {
		select {
		case faults <- err:
		default:
		}
	}

	coordinator, err := hub.New(hub.Config{
		State:            state,
		AnonymousTimeout: appConfig.AnonymousTimeout,
		Clock:            time.Now,
		Tags:             tagStore,
		OnFault:          reportFault,
		Logger:           logger.Named("hub"),
	})
	if err != nil {
		return err
	}

	// The hub outlives the signal context so the interrupt snapshot can still read it.
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	goGuarded("hub", reportFault, func() { coordinator.Run(hubCtx) })
	if err := coordinator.Restore(hubCtx, recoveredNotes, recoveredTags); err != nil {
		return err
	}

	backups, err := backup.NewManager(backup.ManagerConfig{
		Source:        coordinator,
		Store:         snapshots,
		Clock:         time.Now,
		Interval:      appConfig.BackupInterval,
		Retention:     appConfig.BackupRetention,
		PruneInterval: appConfig.BackupPruneInterval,
		Logger:        logger.Named("backup"),
	})
	if err != nil {
		return err
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("fatal panic", zap.Any("panic", recovered), zap.Stack("stack"))
			backups.SaveNow(context.Background(), backup.ReasonFatal)
			runErr = fmt.Errorf("fatal panic: %v", recovered)
		}
	}()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := startListeners(signalCtx, appConfig, coordinator, reportFault, logger); err != nil {
		backups.SaveNow(context.Background(), backup.ReasonFatal)
		return err
	}

	goGuarded("backup", reportFault, func() { backups.Run(signalCtx) })

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Coordinator:    coordinator,
		AllowedOrigins: appConfig.AllowedOrigins,
		Logger:         logger.Named("http"),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("interrupt received, writing final snapshot")
		backups.SaveNow(context.Background(), backup.ReasonInterrupt)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-faults:
		logger.Error("asynchronous failure, writing emergency snapshot", zap.Error(err))
		backups.SaveNow(context.Background(), backup.ReasonAsync)
		return err
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		backups.SaveNow(context.Background(), backup.ReasonFatal)
		return err
	}
}

// loadRecoveredState reads the tag file and, when enabled, the notes of the latest snapshot.
// The tag file wins over snapshot tags because it is rewritten on every tag mutation.
func loadRecoveredState(ctx context.Context, snapshots *backup.Store, tags *tagstore.Store, restoreNotes bool, logger *zap.Logger) ([]production.Note, []production.Tag, error) {
	storedTags, err := tags.Load()
	if err != nil {
		logger.Warn("tag registry unreadable, starting empty", zap.String("path", tags.Path()), zap.Error(err))
		storedTags = nil
	}
	var notes []production.Note
	if restoreNotes {
		payload, found, err := snapshots.Latest(ctx)
		if err != nil {
			return nil, nil, err
		}
		if found {
			notes = payload.Notes
			if len(storedTags) == 0 {
				storedTags = payload.Tags
			}
			logger.Info("state restored from snapshot",
				zap.Int("notes", len(payload.Notes)),
				zap.Time("exported_at", payload.ExportedAt),
			)
		}
	}
	return notes, storedTags, nil
}

func startListeners(ctx context.Context, appConfig config.AppConfig, coordinator *hub.Hub, reportFault func(error), logger *zap.Logger) error {
	if appConfig.OSCEnabled {
		oscListener, err := cues.NewListener(cues.ListenerConfig{
			Address:   appConfig.OSCAddress,
			ActPrefix: appConfig.OSCActPrefix,
			Sink:      coordinator,
			Logger:    logger.Named("osc"),
		})
		if err != nil {
			return err
		}
		if err := oscListener.Listen(); err != nil {
			return err
		}
		if err := coordinator.SetCueSourceAttached(ctx, true); err != nil {
			return err
		}
		goGuarded("osc listener", reportFault, func() {
			if err := oscListener.Serve(ctx); err != nil {
				_ = coordinator.SetCueSourceAttached(context.Background(), false)
				reportFault(err)
			}
		})
	}

	if appConfig.MTCAddress != "" {
		mtcListener, err := timecode.NewListener(timecode.ListenerConfig{
			Address: appConfig.MTCAddress,
			Sink:    coordinator,
			Logger:  logger.Named("mtc"),
		})
		if err != nil {
			return err
		}
		if err := mtcListener.Listen(); err != nil {
			return err
		}
		goGuarded("mtc listener", reportFault, func() {
			if err := mtcListener.Serve(ctx); err != nil {
				reportFault(err)
			}
		})
	}
	return nil
}
