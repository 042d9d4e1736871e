package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"zhatMod/internal/app"
	"zhatMod/internal/app/events"
	"zhatMod/internal/domain"
	"zhatMod/internal/infrastructure/config"
	"zhatMod/internal/infrastructure/logging"
	"zhatMod/internal/infrastructure/metrics"
	sqlitestorage "zhatMod/internal/infrastructure/persistence/sqlite"
	twitchinfra "zhatMod/internal/infrastructure/platform/twitch"
	twitchadapter "zhatMod/internal/interface/adapters/twitch"
	ws "zhatMod/internal/interface/api/ws"
	"zhatMod/internal/interface/outs"
	"zhatMod/internal/usecase/commands"
	credentialsusecase "zhatMod/internal/usecase/credentials"
	"zhatMod/internal/usecase/effects"
	"zhatMod/internal/usecase/handle_message"
	"zhatMod/internal/usecase/obsintegration"
)

const refreshInterval = 1 * time.Hour

type Options struct {
	// Config: si es nil se carga del entorno (.env incluido).
	Config *config.Config
	// Logger: si es nil se construye desde la config.
	Logger *zap.Logger
	// HelixAPIBaseURL solo se usa en tests.
	HelixAPIBaseURL string
}

type Runtime struct {
	ctx        context.Context
	cancel     context.CancelFunc
	cfg        *config.Config
	logger     *zap.Logger
	ownsLogger bool
	store      *sqlitestorage.Store
	refresher  *credentialsusecase.Refresher
	moderation *switchableModeration
	helixURL   string
	wsServer   *ws.Server
	twitchAd   *twitchadapter.Adapter
	multiOut   *outs.MultiSender
	bus        *events.Bus
	metrics    *metrics.Metrics
	router     *commands.Router
	effects    *effects.Registry
	obs        *obsintegration.Integration
	wg         sync.WaitGroup
	started    bool
	dispatcher func(context.Context, domain.Message) error

	twitchMu       sync.RWMutex
	twitchCancel   context.CancelFunc
	twitchDone     chan struct{}
	twitchBotLogin string
	twitchBotToken string
	twitchChannels []string
}

func Start(ctx context.Context, opts Options) (*Runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	logger := opts.Logger
	ownsLogger := false
	if logger == nil {
		built, err := logging.New(logging.Config{
			Level:    cfg.LogLevel,
			FilePath: logFilePath(cfg),
			Console:  cfg.LogConsole,
		})
		if err != nil {
			return nil, fmt.Errorf("logger: %w", err)
		}
		logger = built
		ownsLogger = true
	}

	store, err := sqlitestorage.NewStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	runtimeCtx, cancel := context.WithCancel(ctx)

	run := &Runtime{
		ctx:        runtimeCtx,
		cancel:     cancel,
		cfg:        cfg,
		logger:     logger,
		ownsLogger: ownsLogger,
		store:      store,
		multiOut:   outs.NewMultiSender(),
		bus:        events.NewBus(logger.Named("events")),
		metrics:    metrics.New(),
		effects:    effects.NewRegistry(),
		moderation: &switchableModeration{},
		helixURL:   opts.HelixAPIBaseURL,
	}

	loadInitialTokens(runtimeCtx, store, cfg, logger)

	run.moderation.setIfEmpty(newModerationService(runtimeCtx, cfg, run.helixURL, logger))

	router, err := commands.NewRouter(commands.RouterConfig{
		Handlers: commands.NewModerationCommands(run.moderation, run.moderation, logger.Named("commands")),
		Recorders: []commands.ResultRecorder{
			app.NewAuditRecorder(store, logger),
			app.NewBusRecorder(run.bus),
			app.NewMetricsRecorder(run.metrics),
		},
		Logger: logger.Named("router"),
	})
	if err != nil {
		cancel()
		store.Close()
		return nil, fmt.Errorf("commands: %w", err)
	}
	run.router = router

	run.obs = obsintegration.New(obsintegration.Options{
		Settings: store,
		Defaults: domain.OBSSettings{
			Address:  cfg.OBSAddress,
			Port:     cfg.OBSPort,
			Password: cfg.OBSPassword,
			Logging:  cfg.OBSLogging,
		},
		Publisher: run.bus,
		Gauge:     run.metrics,
		Logger:    logger.Named("obs"),
	})
	if err := run.obs.LoadSettings(runtimeCtx); err != nil {
		logger.Warn("obs: usando ajustes por defecto", zap.Error(err))
	}
	if err := run.obs.Init(run.effects); err != nil {
		cancel()
		store.Close()
		return nil, err
	}

	refresher := credentialsusecase.NewRefresher(store, run.moderation, logger.Named("refresher"))
	refresher.RegisterHook(run.handleCredentialUpdate)
	run.refresher = refresher

	if err := refresher.RefreshAll(runtimeCtx); err != nil {
		logger.Warn("error refrescando tokens", zap.Error(err))
	}
	refresher.Start(runtimeCtx, refreshInterval)

	wsConfig := ws.Config{
		Addr:           cfg.WebServerAddr(),
		Logger:         logger,
		AllowedOrigins: allowedOrigins(cfg),
		Commands:       router,
		ModerationLog:  store,
		Effects:        run.effects,
		EffectMetrics:  run.metrics,
		OBS:            run.obs,
		Metrics:        run.metrics.Handler(),
		UserDataDir:    cfg.UserDataDir,
		WebServerPort:  cfg.WebServerPort,
		CredentialRepo: store,
		CredentialHook: run.handleCredentialUpdate,
	}

	oauthCfg := twitchinfra.OAuthConfig{
		ClientID:     cfg.TwitchClientId,
		ClientSecret: cfg.TwitchClientSecret,
		RedirectURI:  cfg.TwitchRedirectURI,
	}
	if oauthCfg.Enabled() {
		oauthClient, err := twitchinfra.NewOAuthClient(oauthCfg)
		if err != nil {
			logger.Warn("twitch oauth deshabilitado", zap.Error(err))
		} else {
			wsConfig.TwitchOAuth = oauthClient
		}
	}

	wsServer := ws.NewServer(wsConfig)
	run.wsServer = wsServer
	run.multiOut.Register(domain.PlatformDashboard, wsServer)
	wsServer.Forward(runtimeCtx, run.bus, events.Topics...)

	uc := handle_message.NewInteractor(run.multiOut, router, run.bus, run.metrics)

	dispatch := func(ctx context.Context, msg domain.Message) error {
		if msg.ChannelID == "" && msg.Platform == domain.PlatformTwitch {
			msg.ChannelID = run.defaultTwitchChannel()
		}
		return uc.Handle(ctx, msg)
	}
	run.dispatcher = dispatch
	wsServer.SetHandler(dispatch)

	run.initTwitchState(cfg)
	run.syncTwitchAdapter()

	run.wg.Add(2)
	go func() {
		defer run.wg.Done()
		if err := wsServer.Start(runtimeCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("ws server error", zap.Error(err))
			run.bus.Publish(events.TopicAppError, events.NewAppErrorDTO("ws", err))
		}
	}()
	go func() {
		defer run.wg.Done()
		_ = run.obs.Run(runtimeCtx)
	}()

	run.handleCredentialSnapshot(runtimeCtx)

	run.started = true
	logger.Info("Iniciando bot...", zap.Int("port", cfg.WebServerPort), zap.Strings("commands", triggers(router)))
	return run, nil
}

func (r *Runtime) Stop() error {
	if r == nil || !r.started {
		return nil
	}
	r.cancel()
	r.stopTwitchAdapter()
	r.wg.Wait()
	r.bus.Close()
	r.started = false

	err := r.store.Close()
	if r.ownsLogger {
		_ = r.logger.Sync()
	}
	return err
}

func (r *Runtime) Bus() *events.Bus {
	if r == nil {
		return nil
	}
	return r.bus
}

func (r *Runtime) Router() *commands.Router {
	if r == nil {
		return nil
	}
	return r.router
}

func (r *Runtime) DispatchMessage(ctx context.Context, msg domain.Message) error {
	if r == nil || r.dispatcher == nil {
		return fmt.Errorf("dispatcher unavailable")
	}
	if ctx == nil {
		ctx = r.ctx
	}
	return r.dispatcher(ctx, msg)
}

func (r *Runtime) Config() *config.Config {
	if r == nil {
		return nil
	}
	return r.cfg
}

func logFilePath(cfg *config.Config) string {
	if strings.TrimSpace(cfg.LogFile) == "" {
		return ""
	}
	if filepath.IsAbs(cfg.LogFile) {
		return cfg.LogFile
	}
	return filepath.Join(cfg.UserDataDir, cfg.LogFile)
}

// allowedOrigins suma el redirect de OAuth: Twitch vuelve al panel por ese host.
func allowedOrigins(cfg *config.Config) []string {
	out := append([]string(nil), cfg.WebAllowedOrigins...)
	if u, err := url.Parse(strings.TrimSpace(cfg.TwitchRedirectURI)); err == nil && u.Host != "" {
		out = append(out, u.Scheme+"://"+u.Host)
	}
	return out
}

func triggers(router *commands.Router) []string {
	var out []string
	for _, d := range router.Catalog() {
		out = append(out, d.Triggers...)
	}
	return out
}

func loadInitialTokens(ctx context.Context, store *sqlitestorage.Store, cfg *config.Config, logger *zap.Logger) {
	if store == nil {
		return
	}
	if cred, err := store.Get(ctx, domain.PlatformTwitch, "bot"); err == nil && cred != nil {
		if cred.AccessToken != "" {
			cfg.TwitchToken = cred.AccessToken
		}
		if login := strings.TrimSpace(cred.Metadata["login"]); login != "" {
			cfg.TwitchUsername = login
			if len(cfg.TwitchChannels) == 0 {
				cfg.TwitchChannels = []string{ensureTwitchChannel(login)}
			}
		}
		logger.Info("twitch: bot credential", zap.Bool("present", cred.AccessToken != ""), zap.String("user", cfg.TwitchUsername))
	} else if err != nil {
		logger.Warn("error obteniendo token de Twitch bot desde DB", zap.Error(err))
	}

	if cred, err := store.Get(ctx, domain.PlatformTwitch, "streamer"); err == nil && cred != nil {
		if cred.AccessToken != "" {
			cfg.TwitchApiToken = cred.AccessToken
		}
		if cred.RefreshToken != "" {
			cfg.TwitchApiRefreshToken = cred.RefreshToken
		}
		if id := strings.TrimSpace(cred.Metadata["user_id"]); id != "" && cfg.TwitchBroadcasterId == "" {
			cfg.TwitchBroadcasterId = id
		}
	} else if err != nil {
		logger.Warn("error obteniendo token de Twitch streamer desde DB", zap.Error(err))
	}
}

func (r *Runtime) handleCredentialSnapshot(ctx context.Context) {
	creds, err := r.store.List(ctx)
	if err != nil {
		r.logger.Warn("snapshot credentials error", zap.Error(err))
		return
	}
	for _, cred := range creds {
		if cred == nil {
			continue
		}
		r.handleCredentialUpdate(ctx, cred)
	}
}

func formatTwitchOAuthToken(token string) string {
	if token == "" {
		return ""
	}
	if strings.HasPrefix(token, "oauth:") {
		return token
	}
	return "oauth:" + token
}

func (r *Runtime) handleCredentialUpdate(ctx context.Context, cred *domain.Credential) {
	if r == nil || cred == nil || cred.Platform != domain.PlatformTwitch {
		return
	}
	r.applyTwitchCredential(cred)
}

func (r *Runtime) initTwitchState(cfg *config.Config) {
	r.twitchMu.Lock()
	defer r.twitchMu.Unlock()
	r.twitchBotLogin = strings.TrimSpace(cfg.TwitchUsername)
	r.twitchBotToken = formatTwitchOAuthToken(strings.TrimSpace(cfg.TwitchToken))
	r.twitchChannels = sanitizeTwitchChannels(cfg.TwitchChannels)
	if len(r.twitchChannels) == 0 && r.twitchBotLogin != "" {
		r.twitchChannels = []string{ensureTwitchChannel(r.twitchBotLogin)}
	}
}

func (r *Runtime) defaultTwitchChannel() string {
	r.twitchMu.RLock()
	defer r.twitchMu.RUnlock()
	if len(r.twitchChannels) == 0 {
		return ""
	}
	return r.twitchChannels[0]
}

func (r *Runtime) applyTwitchCredential(cred *domain.Credential) {
	login := strings.TrimSpace(cred.Metadata["login"])
	role := strings.ToLower(strings.TrimSpace(cred.Role))
	changed := false

	r.twitchMu.Lock()
	switch role {
	case "bot":
		token := formatTwitchOAuthToken(cred.AccessToken)
		if token != "" && token != r.twitchBotToken {
			r.twitchBotToken = token
			changed = true
		}
		if login != "" && !strings.EqualFold(login, r.twitchBotLogin) {
			r.twitchBotLogin = login
			changed = true
		}
		if len(r.twitchChannels) == 0 && login != "" {
			r.twitchChannels = []string{ensureTwitchChannel(login)}
			changed = true
		}
	case "streamer":
		if len(r.twitchChannels) == 0 && login != "" {
			r.twitchChannels = []string{ensureTwitchChannel(login)}
			changed = true
		}
	}
	r.twitchMu.Unlock()

	if role == "streamer" {
		r.applyStreamerCredential(cred)
	}

	if changed {
		r.logger.Info("twitch: credencial actualizada", zap.String("role", role))
		r.syncTwitchAdapter()
	}
}

func (r *Runtime) syncTwitchAdapter() {
	r.twitchMu.RLock()
	cfg := twitchadapter.Config{
		Username:   r.twitchBotLogin,
		OAuthToken: r.twitchBotToken,
		Channels:   append([]string(nil), r.twitchChannels...),
		Logger:     r.logger,
	}
	running := r.twitchAd != nil
	r.twitchMu.RUnlock()

	if cfg.Username == "" || cfg.OAuthToken == "" || len(cfg.Channels) == 0 {
		if running {
			r.stopTwitchAdapter()
		} else {
			r.logger.Info("twitch: adaptador deshabilitado hasta que completes el login del bot")
		}
		return
	}

	if running {
		r.stopTwitchAdapter()
	}
	r.startTwitchAdapter(cfg)
}

func (r *Runtime) startTwitchAdapter(cfg twitchadapter.Config) {
	r.logger.Info("twitch: starting IRC client", zap.String("user", cfg.Username), zap.Strings("channels", cfg.Channels))
	adapter := twitchadapter.NewAdapter(cfg)
	if handler := r.dispatcher; handler != nil {
		adapter.SetHandler(handler)
	}
	ctx, cancel := context.WithCancel(r.ctx)
	done := make(chan struct{})

	r.twitchMu.Lock()
	r.twitchAd = adapter
	r.twitchCancel = cancel
	r.twitchDone = done
	r.twitchMu.Unlock()

	r.multiOut.Register(domain.PlatformTwitch, adapter)

	go func() {
		defer close(done)
		if err := adapter.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("twitch: adapter error", zap.Error(err))
			r.bus.Publish(events.TopicAppError, events.NewAppErrorDTO("twitch", err))
		}
	}()
}

func (r *Runtime) stopTwitchAdapter() {
	r.twitchMu.Lock()
	cancel := r.twitchCancel
	done := r.twitchDone
	hasAdapter := r.twitchAd != nil
	r.twitchAd = nil
	r.twitchCancel = nil
	r.twitchDone = nil
	r.twitchMu.Unlock()

	if hasAdapter {
		r.logger.Info("twitch: stopping IRC client")
		r.multiOut.Unregister(domain.PlatformTwitch)
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func sanitizeTwitchChannels(input []string) []string {
	var result []string
	seen := make(map[string]struct{})
	for _, raw := range input {
		for _, part := range strings.Split(raw, ",") {
			channel := ensureTwitchChannel(part)
			if channel == "" {
				continue
			}
			if _, ok := seen[channel]; ok {
				continue
			}
			seen[channel] = struct{}{}
			result = append(result, channel)
		}
	}
	return result
}

func ensureTwitchChannel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if !strings.HasPrefix(value, "#") {
		value = "#" + value
	}
	return strings.ToLower(value)
}
