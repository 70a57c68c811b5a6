package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/chat-bridge/internal/api"
	"github.com/Rrens/chat-bridge/internal/api/handler"
	"github.com/Rrens/chat-bridge/internal/archive"
	"github.com/Rrens/chat-bridge/internal/config"
	"github.com/Rrens/chat-bridge/internal/domain"
	"github.com/Rrens/chat-bridge/internal/llm"
	"github.com/Rrens/chat-bridge/internal/llm/anthropic"
	"github.com/Rrens/chat-bridge/internal/llm/deepseek"
	"github.com/Rrens/chat-bridge/internal/llm/gemini"
	"github.com/Rrens/chat-bridge/internal/llm/ollama"
	"github.com/Rrens/chat-bridge/internal/llm/openai"
	"github.com/Rrens/chat-bridge/internal/logging"
	"github.com/Rrens/chat-bridge/internal/repository/redis"
	"github.com/Rrens/chat-bridge/internal/security"
	"github.com/Rrens/chat-bridge/internal/server"
	"github.com/Rrens/chat-bridge/internal/service"
	"github.com/Rrens/chat-bridge/internal/session"
	"github.com/Rrens/chat-bridge/internal/transport"
)

func main() {
	args, err := config.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, config.Usage)
		os.Exit(1)
	}

	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyArgs(args)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	closer, err := logging.Setup(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("Server failed")
		closer.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	instance := uuid.New()
	log.Info().
		Str("instance", instance.String()).
		Str("store", cfg.Store.Driver).
		Str("archive", cfg.Archive.Driver).
		Msg("Starting chat bridge")

	var (
		redisClient *redis.Client
		readiness   []handler.Check
	)
	if cfg.Store.Driver == "redis" || cfg.RateLimit.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		redisClient = client
		readiness = append(readiness, handler.Check{Name: "redis", Ping: client.Ping})
	}

	// Session store
	var store domain.SessionStore
	switch cfg.Store.Driver {
	case "redis":
		rs := redis.NewSessionStore(redisClient, instance)
		defer func() {
			pctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := rs.Purge(pctx); err != nil {
				log.Warn().Err(err).Msg("failed to purge sessions")
			}
		}()
		store = rs
	default:
		store = session.NewMemoryStore()
	}

	// Archive
	sink, err := archive.DefaultRegistry().Open(ctx, cfg.Archive)
	if err != nil {
		return err
	}
	recorder := archive.NewRecorder(sink, instance, cfg.Archive.BufferSize)
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := recorder.Close(cctx); err != nil {
			log.Warn().Err(err).Msg("archive did not drain")
		}
	}()

	// LLM providers
	llmRouter := newLLMRouter(cfg.LLM)
	assistant := llm.NewAssistant(llmRouter, cfg.LLM)

	opts := []service.Option{service.WithRecorder(recorder)}
	var limiter *redis.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = redis.NewRateLimiter(redisClient, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
		opts = append(opts, service.WithLimiter(limiter))
	}
	chat := service.NewChatService(store, assistant, opts...)

	// Transport
	var enc *security.Encryptor
	if cfg.Transport.Secret != "" {
		enc, err = security.NewEncryptorFromSecret(cfg.Transport.Secret)
		if err != nil {
			return err
		}
	} else {
		log.Warn().Msg("transport.secret is empty, messages are sent in plain text")
	}
	codec := transport.NewCodec(cfg.Transport.MaxPayload, enc)

	var srvOpts []server.Option
	var srv *server.Server
	if cfg.Admin.Enabled {
		deps := api.Deps{
			Admin: cfg.Admin,
			Store: store,
			LLM:   llmRouter,
			Stats: map[string]handler.StatsSource{
				"server":   func() any { return srv.Stats() },
				"messages": func() any { return chat.Stats() },
				"archive":  func() any { return recorder.Stats() },
			},
			Ready: readiness,
		}
		if limiter != nil {
			deps.Limiter = limiter
		}
		srvOpts = append(srvOpts, server.WithAdmin(cfg.Admin.Addr(), api.NewRouter(deps)))
	}

	srv = server.New(cfg.Server, codec, chat, srvOpts...)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newLLMRouter(cfg config.LLMConfig) *llm.Router {
	router := llm.NewRouter(cfg.DefaultProvider)

	log.Info().Msgf("Initializing LLM providers. Default: %s", cfg.DefaultProvider)

	if cfg.Ollama.Host != "" {
		log.Info().Str("host", cfg.Ollama.Host).Msg("Registering Ollama provider")
		router.RegisterProvider(ollama.NewProvider(cfg.Ollama.Host, cfg.Ollama.DefaultModel))
	}
	if cfg.OpenAI.APIKey != "" {
		router.RegisterProvider(openai.NewProvider(cfg.OpenAI.APIKey, cfg.OpenAI.Model))
	}
	if cfg.Anthropic.APIKey != "" {
		router.RegisterProvider(anthropic.NewProvider(cfg.Anthropic.APIKey, cfg.Anthropic.Model))
	}
	if cfg.DeepSeek.APIKey != "" {
		router.RegisterProvider(deepseek.NewProvider(cfg.DeepSeek.APIKey, cfg.DeepSeek.Model))
	}
	if cfg.Gemini.APIKey != "" {
		router.RegisterProvider(gemini.NewProvider(cfg.Gemini))
	}

	if _, err := router.GetProvider(""); err != nil {
		log.Warn().Err(err).Msg("default LLM provider is not available, every message will get the fallback reply")
	}
	return router
}

