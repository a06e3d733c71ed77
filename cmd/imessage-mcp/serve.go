package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/sameelarif/imessage-mcp/internal/config"
	"github.com/sameelarif/imessage-mcp/internal/contacts"
	"github.com/sameelarif/imessage-mcp/internal/imessage"
	"github.com/sameelarif/imessage-mcp/internal/logger"
	"github.com/sameelarif/imessage-mcp/internal/mcp"
	mcpattachments "github.com/sameelarif/imessage-mcp/internal/mcp/providers/attachments"
	mcpcontacts "github.com/sameelarif/imessage-mcp/internal/mcp/providers/contacts"
	mcpconversations "github.com/sameelarif/imessage-mcp/internal/mcp/providers/conversations"
	mcpmessages "github.com/sameelarif/imessage-mcp/internal/mcp/providers/messages"
	"github.com/sameelarif/imessage-mcp/internal/resolve"
	"github.com/sameelarif/imessage-mcp/internal/server"
)

func newServeCmd() *cobra.Command {
	var httpMode bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio, or over HTTP with --http",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe(httpMode)
			return nil
		},
	}
	cmd.Flags().BoolVar(&httpMode, "http", false, "serve over streamable HTTP instead of stdio")
	return cmd
}

func runServe(httpMode bool) {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideContactIndex,
			provideChatDB,
			provideSender,
			provideResolver,
			provideRegistry,
			provideServer,
		),
		fx.Supply(serveMode{HTTP: httpMode}),
		fx.Invoke(startServer),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

type serveMode struct {
	HTTP bool
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

// provideContactIndex opens the address book when one can be found. A
// missing address book is not fatal: name resolution falls back to chat
// display names.
func provideContactIndex(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) *contacts.Index {
	path := cfg.Contacts.DBPath
	if path == "" {
		located, err := contacts.Locate(contacts.DefaultRoot())
		if err != nil {
			log.Warn("address book not found, contact lookups disabled", slog.Any("error", err))
			return contacts.NewIndex(nil)
		}
		path = located
	}
	store, err := contacts.Open(log, path)
	if err != nil {
		log.Warn("address book open failed, contact lookups disabled", slog.Any("error", err))
		return contacts.NewIndex(nil)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return store.Close() },
	})
	return contacts.NewIndex(store)
}

func provideChatDB(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (*imessage.ChatDB, error) {
	path := cfg.Messages.ChatDBPath
	if path == "" {
		path = imessage.DefaultChatDBPath()
	}
	db, err := imessage.OpenChatDB(log, path)
	if err != nil {
		return nil, fmt.Errorf("open chat database: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return db.Close() },
	})
	return db, nil
}

func provideSender(log *slog.Logger, cfg config.Config) *imessage.Sender {
	if cfg.Messages.SendDisabled {
		return nil
	}
	return imessage.NewSender(log, cfg.Messages.Debug)
}

func provideResolver(log *slog.Logger, index *contacts.Index, db *imessage.ChatDB) *resolve.Resolver {
	return resolve.NewResolver(log, index, db)
}

func provideRegistry(log *slog.Logger, index *contacts.Index, db *imessage.ChatDB, sender *imessage.Sender, resolver *resolve.Resolver) (*mcp.ToolRegistry, error) {
	registry := mcp.NewToolRegistry()
	ctx := context.Background()

	var sendBackend mcpmessages.Sender
	if sender != nil {
		sendBackend = sender
	}
	executors := []mcp.ToolExecutor{
		mcpmessages.NewExecutor(log, db, sendBackend),
		mcpconversations.NewExecutor(log, db),
		mcpcontacts.NewExecutor(log, resolver, index),
		mcpattachments.NewExecutor(log, db),
	}
	for _, executor := range executors {
		if err := registry.RegisterExecutor(ctx, executor); err != nil {
			return nil, fmt.Errorf("register tools: %w", err)
		}
	}
	return registry, nil
}

func provideServer(log *slog.Logger, cfg config.Config, registry *mcp.ToolRegistry) *server.Server {
	return server.New(log, registry, cfg.Server.Addr)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, mode serveMode) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if mode.HTTP {
				go func() {
					if err := srv.RunHTTP(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error("server failed", slog.Any("error", err))
						_ = shutdowner.Shutdown()
					}
				}()
				return nil
			}
			go func() {
				if err := srv.RunStdio(context.Background()); err != nil {
					log.Error("stdio session failed", slog.Any("error", err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
