package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bnchfan/bancho-core/internal/account"
	"github.com/bnchfan/bancho-core/internal/bancho"
	"github.com/bnchfan/bancho-core/internal/chat"
	"github.com/bnchfan/bancho-core/internal/config"
	"github.com/bnchfan/bancho-core/internal/dispatch"
	"github.com/bnchfan/bancho-core/internal/httpapi"
	"github.com/bnchfan/bancho-core/internal/peer"
	"github.com/bnchfan/bancho-core/internal/transport"
)

const ConfigPath = "config/bancho.yaml"

const defaultChannelLogCapacity = 500

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(ctx context.Context) error {
	cfgPath := config.ResolvePath(ConfigPath)
	cfg, err := config.LoadBancho(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("bancho-core starting", "config", cfgPath, "http_port", cfg.HTTPPort, "peer_port", cfg.PeerPort)

	accounts, err := account.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to account database: %w", err)
	}
	defer accounts.Close()

	if err := account.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running account migrations: %w", err)
	}
	slog.Info("account database ready")

	registry := bancho.NewRegistry()
	if cfg.SnapshotPath != "" {
		if restored, err := bancho.LoadSnapshot(cfg.SnapshotPath); err != nil {
			slog.Warn("snapshot restore failed, starting empty", "path", cfg.SnapshotPath, "err", err)
		} else {
			registry = restored
			slog.Info("snapshot restored", "path", cfg.SnapshotPath, "sessions", registry.Len())
		}
	}

	channels := chat.NewRegistry()
	var autoJoin []string
	for _, pc := range cfg.PublicChannels {
		ch := channels.CreateChannel(pc.Name, pc.Description, chat.ChannelPublic, defaultChannelLogCapacity)
		ch.MinPrivilegeRead = pc.MinPrivilegeRead
		ch.MinPrivilegeWrite = pc.MinPrivilegeWrite
		if pc.AutoJoin {
			autoJoin = append(autoJoin, pc.Name)
		}
	}
	slog.Info("public channels registered", "count", len(cfg.PublicChannels))

	localSessions := bancho.NewSessionServiceLocal(registry, channels)
	localChat := chat.NewServiceLocal(channels, localSessions)

	peerClients := peer.Dial(cfg.KnownPeers)
	sessions := peer.NewSessions(localSessions, peerClients)

	handler := dispatch.NewHandler(sessions, localChat)

	httpServer := &httpapi.Server{
		Sessions:         sessions,
		Chat:             localChat,
		Dispatch:         handler,
		Accounts:         accounts,
		AutoCreate:       cfg.AutoCreateAccounts,
		AutoJoinChannels: autoJoin,
	}

	rpcServer := transport.NewServer()
	bancho.RegisterSessionService(rpcServer, localSessions)
	chat.RegisterChatService(rpcServer, localChat)

	g, gctx := errgroup.WithContext(ctx)

	httpAddr := fmt.Sprintf("%s:%d", cfg.HTTPBindAddress, cfg.HTTPPort)
	srv := &http.Server{Addr: httpAddr, Handler: httpServer.Mux()}
	g.Go(func() error {
		slog.Info("http listener starting", "addr", httpAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	peerAddr := fmt.Sprintf("%s:%d", cfg.PeerBindAddress, cfg.PeerPort)
	g.Go(func() error {
		if err := rpcServer.Run(peerAddr); err != nil {
			select {
			case <-gctx.Done():
				return nil
			default:
				return fmt.Errorf("peer rpc listener: %w", err)
			}
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return rpcServer.Close()
	})

	if cfg.InactivityTimeout > 0 {
		g.Go(func() error {
			runInactivitySweep(gctx, localSessions, localChat, cfg)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if cfg.SnapshotPath == "" {
			return nil
		}
		if err := bancho.SaveSnapshot(registry, cfg.SnapshotPath); err != nil {
			slog.Warn("snapshot save failed", "path", cfg.SnapshotPath, "err", err)
			return nil
		}
		slog.Info("snapshot saved", "path", cfg.SnapshotPath, "sessions", registry.Len())
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server group: %w", err)
	}
	return nil
}

// runInactivitySweep periodically evicts sessions whose last_active
// exceeds the configured timeout, logging and continuing on any single
// eviction's error rather than aborting the sweep loop.
func runInactivitySweep(ctx context.Context, sessions *bancho.SessionServiceLocal, chatSvc chat.Service, cfg config.Bancho) {
	interval := time.Duration(cfg.SweepInterval) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := time.Duration(cfg.InactivityTimeout) * time.Second

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(sessions, chatSvc, timeout)
		}
	}
}

// sweepOnce evicts every stale session through DeleteUserSession, the same
// path logout and displacement use, so an inactivity timeout also clears
// the user's channel memberships rather than leaving ghost members behind.
func sweepOnce(sessions *bancho.SessionServiceLocal, chatSvc chat.Service, timeout time.Duration) {
	var stale []*bancho.Session
	sessions.Registry.ForEach(func(sess *bancho.Session) bool {
		if time.Since(sess.LastActive()) > timeout {
			stale = append(stale, sess)
		}
		return true
	})
	for _, sess := range stale {
		userID := sess.UserID
		if err := sessions.DeleteUserSession(bancho.ByUserID(userID)); err != nil {
			slog.Warn("inactivity sweep: evicting session failed", "user_id", userID, "err", err)
			continue
		}
		if err := chatSvc.RemoveQueue(userID); err != nil {
			slog.Warn("inactivity sweep: removing chat queue failed", "user_id", userID, "err", err)
		}
		slog.Info("inactivity sweep evicted session", "user_id", userID, "session_id", sess.SessionID)
	}
}
