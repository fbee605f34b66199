package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/relaywave/bsp-gateway/internal/accountreactor"
	"github.com/relaywave/bsp-gateway/internal/auth"
	"github.com/relaywave/bsp-gateway/internal/cache"
	"github.com/relaywave/bsp-gateway/internal/config"
	"github.com/relaywave/bsp-gateway/internal/contact"
	"github.com/relaywave/bsp-gateway/internal/conversation"
	"github.com/relaywave/bsp-gateway/internal/db"
	"github.com/relaywave/bsp-gateway/internal/dispatch"
	"github.com/relaywave/bsp-gateway/internal/httpapi"
	"github.com/relaywave/bsp-gateway/internal/killswitch"
	"github.com/relaywave/bsp-gateway/internal/logging"
	"github.com/relaywave/bsp-gateway/internal/messaging"
	"github.com/relaywave/bsp-gateway/internal/outbound"
	"github.com/relaywave/bsp-gateway/internal/provider"
	"github.com/relaywave/bsp-gateway/internal/ratelimit"
	"github.com/relaywave/bsp-gateway/internal/replyengine"
	"github.com/relaywave/bsp-gateway/internal/template"
	"github.com/relaywave/bsp-gateway/internal/tenant"
	"github.com/relaywave/bsp-gateway/internal/webhook"
	"github.com/relaywave/bsp-gateway/internal/workflow"
)

// providerBaseURL is the single upstream messaging provider's API root
// (§6.1). It never varies per tenant, so it is not part of config.Config.
const providerBaseURL = "https://graph.facebook.com"

const dispatchWorkers = 8

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Setup(cfg)

	ctx := context.Background()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	store, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer store.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer redisClient.Close()

	jwtCfg := auth.JWTCfg{
		HS256Secret: cfg.AdminJWTSecret,
		DevMode:     !cfg.IsProduction(),
	}
	if err := auth.InitJWKSCache(jwtCfg); err != nil {
		log.Warn().Err(err).Msg("failed to pre-fetch JWKS (will retry on first request)")
	}

	// Domain repositories.
	tenantRepo := tenant.NewRepo(pool)
	contactRepo := contact.NewRepo(pool)
	conversationRepo := conversation.NewRepo(pool)
	messagingRepo := messaging.NewRepo(pool)
	ledgerRepo := messaging.NewLedgerRepo(pool)
	templateRepo := template.NewRepo(pool)
	killSwitchRepo := killswitch.NewRepo(pool)
	webhookRepo := webhook.NewRepo(pool)
	autoReplyRepo := replyengine.NewAutoReplyRepo(pool)
	faqRepo := replyengine.NewFAQRepo(pool)

	phoneCache := tenant.NewPhoneWorkspaceCache(tenantRepo)
	defer phoneCache.Close()

	// Provider client and emitter, shared by every package that talks
	// upstream or publishes realtime events.
	providerClient := provider.NewClient(provider.Config{
		BaseURL:          providerBaseURL,
		APIVersion:       cfg.APIVersion,
		SystemUserToken:  cfg.SystemUserToken,
		ParentWABAID:     cfg.ParentWABAID,
		ParentBusinessID: cfg.ParentBusinessID,
	})
	mediaFetcher := provider.NewMediaFetcher(providerClient, cfg.MediaRoot)
	emitter := messaging.NewRedisEmitter(redisClient)

	limiter := ratelimit.NewLimiter(store)
	workflowEngine := workflow.NewLoggingEngine()

	// Kill-switch health reactor and the account reactor that feeds it
	// authoritative account_update/business_capability_update state.
	healthReactor := killswitch.NewReactor(killSwitchRepo, killSwitchRepo)
	acctReactor := accountreactor.New(tenantRepo, healthReactor)

	// Outbound send pipeline, and the adapter that lets the reply engines
	// trigger a send without depending on its full surface.
	sender := &outbound.Sender{
		Workspace:          tenantRepo,
		Contacts:           contactRepo,
		Conversations:      conversationRepo,
		Templates:          templateRepo,
		Limiter:            limiter,
		Provider:           providerClient,
		Messages:           messagingRepo,
		Ledger:             ledgerRepo,
		Emitter:            emitter,
		DefaultCountryCode: cfg.DefaultCountryCode,
	}
	replyAdapter := outbound.NewReplyAdapter(sender)

	autoReplyEngine := replyengine.NewAutoReplyEngine(autoReplyRepo, templateRepo, replyAdapter)
	faqBot := replyengine.NewFAQBot(faqRepo, replyAdapter)

	ingestor := messaging.NewIngestor(contactRepo, conversationRepo, messagingRepo, ledgerRepo, mediaFetcher, autoReplyEngine, faqBot, workflowEngine, emitter)
	statusApplier := messaging.NewStatusApplier(messagingRepo, killSwitchRepo, workflowEngine, emitter)

	templateStateMachine := template.NewStateMachine(templateRepo, store, emitter)
	templateStateMachine.Workspace = tenantRepo

	templateSubmitter := template.NewSubmitter(tenantRepo, limiter, providerClient, tenantRepo, templateRepo)

	// Webhook ingress: admission (signature + replay) and the async queue
	// the dispatcher drains.
	replayGuard := webhook.NewReplayGuard(store)
	queue := dispatch.NewRedisQueue(redisClient)

	webhookHandler := &webhook.Handler{
		AppSecret:                 cfg.AppSecret,
		VerifyToken:               cfg.WebhookVerifyToken,
		SkipSignatureVerification: cfg.SkipSignatureVerification,
		Production:                cfg.IsProduction(),
		Replay:                    replayGuard,
		Logs:                      webhookRepo,
		Queue:                    queue,
	}

	handlers := &dispatch.GatewayHandlers{
		Ingestor:     ingestor,
		StatusApply:  statusApplier,
		Templates:    templateStateMachine,
		AccountReact: acctReactor,
	}
	dispatcher := dispatch.New(queue, webhookRepo, phoneCache, handlers, dispatchWorkers)

	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()
	go dispatcher.Run(dispatchCtx)

	srv := &httpapi.Server{
		Webhook:       webhookHandler,
		Sender:        sender,
		Workspaces:    tenantRepo,
		KillSwitch:    healthReactor,
		WebhookLogs:   webhookRepo,
		Templates:     templateSubmitter,
		Phones:        tenantRepo,
		PhoneCache:    phoneCache,
		JWTCfg:        jwtCfg,
		SendRateLimit: httpapi.DefaultSendRateLimit,
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")
	cancelDispatch()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}
