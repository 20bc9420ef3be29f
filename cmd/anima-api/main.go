package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PabloGalante/anima-agent/internal/adapters/identity/dev"
	firebaseid "github.com/PabloGalante/anima-agent/internal/adapters/identity/firebase"
	httpadapter "github.com/PabloGalante/anima-agent/internal/adapters/http"
	"github.com/PabloGalante/anima-agent/internal/adapters/llm"
	"github.com/PabloGalante/anima-agent/internal/adapters/objectstore/gcs"
	objmem "github.com/PabloGalante/anima-agent/internal/adapters/objectstore/memory"
	boltstore "github.com/PabloGalante/anima-agent/internal/adapters/storage/bolt"
	firestorestore "github.com/PabloGalante/anima-agent/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/anima-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/anima-agent/internal/app/account"
	"github.com/PabloGalante/anima-agent/internal/app/catalog"
	"github.com/PabloGalante/anima-agent/internal/app/conversation"
	"github.com/PabloGalante/anima-agent/internal/app/history"
	"github.com/PabloGalante/anima-agent/internal/app/upload"
	"github.com/PabloGalante/anima-agent/internal/config"
	"github.com/PabloGalante/anima-agent/internal/domain"
	"github.com/PabloGalante/anima-agent/internal/observability"
)

type stores struct {
	agents domain.AgentStore
	chats  domain.ChatStore
	users  domain.UserStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	observability.Setup(os.Stdout, cfg.LogLevel)
	log := observability.WithFields("service", "anima-api", "mode", string(cfg.Mode))
	log.Info("anima starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var closers []io.Closer
	fatal := func(msg string, err error) {
		log.Error(msg, "error", err)
		os.Exit(1)
	}

	// Document storage: Firestore, bolt or memory
	var st stores
	switch cfg.StorageBackend {
	case "firestore":
		log.Info("using Firestore storage", "project", cfg.GCPProjectID)
		fs, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			fatal("error initializing Firestore store", err)
		}
		st = stores{agents: fs, chats: fs, users: fs}
		closers = append(closers, fs)
	case "bolt":
		log.Info("using bolt storage", "path", cfg.BoltPath)
		db, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			fatal("error opening bolt store", err)
		}
		st = stores{agents: db, chats: db, users: db}
		closers = append(closers, db)
	default:
		log.Info("using in-memory storage")
		st = stores{agents: memstore.NewAgentStore(), chats: memstore.NewChatStore(), users: memstore.NewUserStore()}
	}

	// Object storage: GCS or memory
	var objects domain.ObjectStore
	switch cfg.ObjectBackend {
	case "gcs":
		log.Info("using GCS object storage", "bucket", cfg.Bucket)
		g, err := gcs.NewStore(ctx, cfg.Bucket, cfg.PublicURLBase)
		if err != nil {
			fatal("error initializing GCS store", err)
		}
		objects = g
		closers = append(closers, g)
	default:
		base := cfg.PublicURLBase
		if base == "" {
			base = "memory://" + cfg.Bucket
		}
		log.Info("using in-memory object storage")
		objects = objmem.NewStore(base)
	}

	// Chat model
	var model domain.ChatModel
	switch cfg.LLMProvider {
	case "kravix":
		log.Info("using hosted chat endpoint", "endpoint", cfg.ChatEndpoint, "model", cfg.AIModel)
		model = llm.NewKravixClient(cfg.ChatEndpoint, cfg.ChatAPIKey, cfg.AIModel, nil)
	case "openai":
		log.Info("using OpenAI-compatible chat model", "model", cfg.AIModel)
		model = llm.NewOpenAIClient(cfg.ChatAPIKey, cfg.OpenAIBase, cfg.AIModel)
	case "vertex":
		log.Info("using Vertex chat model", "model", cfg.ModelName)
		v, err := llm.NewVertexClient(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.ModelName)
		if err != nil {
			fatal("error initializing Vertex client", err)
		}
		model = v
	default:
		log.Info("using mock chat model")
		model = llm.NewMockLLM()
	}

	// Identity
	var identity domain.IdentityProvider
	switch cfg.AuthProvider {
	case "firebase":
		log.Info("using Firebase auth", "project", cfg.GCPProjectID)
		p, err := firebaseid.New(ctx, cfg.GCPProjectID)
		if err != nil {
			fatal("error initializing Firebase auth", err)
		}
		identity = p
	default:
		log.Warn("using dev identity provider, tokens are not verified")
		identity = dev.New()
	}

	presets, err := catalog.DefaultPresets()
	if err != nil {
		fatal("error loading preset agents", err)
	}

	view := conversation.DefaultViewOptions()
	notifier := httpadapter.NewNotifier(view)
	uploader := upload.New(objects,
		upload.WithMaxBytes(cfg.UploadMaxBytes),
		upload.WithCacheDir(cfg.CacheDir),
	)

	catalogSvc := catalog.NewService(presets, st.agents)
	convSvc := conversation.NewService(catalogSvc, model, uploader, st.chats, notifier)
	accountSvc := account.NewService(identity, st.users, convSvc)

	handler := httpadapter.NewServer(httpadapter.Deps{
		Conversations: convSvc,
		Catalog:       catalogSvc,
		History:       history.NewService(st.chats),
		Accounts:      accountSvc,
		Notifier:      notifier,
		Stager:        uploader,
		View:          view,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("HTTP server error", err)
		}
	}()
	go convSvc.SweepIdle(ctx, cfg.IdleTTL, cfg.SweepInterval)
	log.Info("anima ready", "port", cfg.Port, "presets", len(presets), "idle_ttl", cfg.IdleTTL.String())

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := notifier.Shutdown(shutdownCtx); err != nil {
		log.Warn("sse shutdown", "error", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	log.Info("closed open conversations", "count", convSvc.CloseAll(shutdownCtx))

	for _, c := range closers {
		if err := c.Close(); err != nil {
			log.Warn("close failed", "error", err)
		}
	}
	cancel()
	log.Info("anima stopped")
}
