package main

import (
	"context"
	"errors"
	"flag"
	"log"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"clubdesk/internal/api"
	"clubdesk/internal/auth"
	"clubdesk/internal/chat"
	"clubdesk/internal/commands"
	"clubdesk/internal/config"
	"clubdesk/internal/filestore"
	"clubdesk/internal/http"
	"clubdesk/internal/storage"
	"clubdesk/internal/ws"
)

func run(ctx context.Context, promoteAdmin string) error {
	cfg, err := config.Load(promoteAdmin != "")
	if err != nil {
		return err
	}

	if promoteAdmin != "" {
		return commands.PromoteAdmin(promoteAdmin, cfg)
	}

	store, err := storage.NewBboltStorage(cfg.DBFile)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	authService, err := auth.NewService(ctx, auth.Config{
		Secret:      cfg.JWTSecret,
		TokenExpiry: cfg.TokenExpiry,
	}, store)
	if err != nil {
		return err
	}

	if cfg.OwnerEmail != "" && cfg.OwnerPassword != "" {
		if err := authService.BootstrapOwner("owner", cfg.OwnerEmail, cfg.OwnerPassword); err != nil {
			return err
		}
	}

	files, err := filestore.NewLocalFileStore(cfg.UploadsPath)
	if err != nil {
		return err
	}

	registry := ws.NewRegistry()
	chatService := chat.NewService(store, registry)
	wsServer := ws.NewServer(authService, chatService, registry)
	handlers := api.New(authService, chatService, store, files, cfg.BaseURL)

	apiServer := http.NewAPIServer(handlers, wsServer, cfg.APIAddr)
	ownerServer := http.NewOwnerServer(api.NewOwnerHandler(store), cfg.OwnerAddr)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := ownerServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("API server shutdown error: %v", err)
		}
		if err := ownerServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Owner console shutdown error: %v", err)
		}
		registry.Shutdown()
		return nil
	})

	return g.Wait()
}

func main() {
	promoteAdmin := flag.String("promote-admin", "", "Email of an existing account to promote to staff (requires a running server)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *promoteAdmin); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
