package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	"github.com/relaykeys/keygated/internal/classifier"
	"github.com/relaykeys/keygated/internal/collab"
	"github.com/relaykeys/keygated/internal/config"
	"github.com/relaykeys/keygated/internal/lifecycle"
	"github.com/relaykeys/keygated/internal/proxy"
	"github.com/relaykeys/keygated/internal/statussrv"
	"github.com/relaykeys/keygated/internal/upstream"
	"github.com/relaykeys/keygated/internal/verifier"
)

// logSinkQueueCapacity bounds the fire-and-forget log queue (see
// collab.QueueSink); entries submitted past this depth are dropped rather
// than blocking a classification or verification call.
const logSinkQueueCapacity = 1024

// ConfigService wraps the loaded configuration with hot-reload support. It
// uses atomic.Pointer for lock-free reads so in-flight rotation/verification
// work never blocks on a reload.
type ConfigService struct {
	config  *config.Runtime
	watcher *config.Watcher
	path    string

	// Config is the config snapshot present at container construction.
	Config *config.Config
}

// Get returns the current configuration via atomic load.
func (c *ConfigService) Get() *config.Config {
	return c.config.Get()
}

// StartWatching begins watching the config file for changes, atomically
// swapping the served config on every valid reload. Safe to call when no
// watcher could be created (hot-reload is then simply disabled).
func (c *ConfigService) StartWatching(ctx context.Context) {
	if c.watcher == nil {
		return
	}

	c.watcher.OnReload(func(newCfg *config.Config) error {
		c.config.Store(newCfg)
		log.Info().Str("path", c.path).Msg("config hot-reloaded successfully")
		return nil
	})

	go func() {
		if err := c.watcher.Watch(ctx); err != nil {
			log.Error().Err(err).Msg("config watcher error")
		}
	}()

	log.Info().Str("path", c.path).Msg("config file watcher started")
}

// Shutdown implements do.Shutdowner for graceful watcher cleanup.
func (c *ConfigService) Shutdown() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// LoggerService wraps the zerolog logger for DI.
type LoggerService struct {
	Logger *zerolog.Logger
}

// LogSinkService wraps the bounded fire-and-forget log queue shared by the
// classifier and the verifier.
type LogSinkService struct {
	Sink *collab.QueueSink
}

// Shutdown drains and stops the sink's worker goroutine.
func (s *LogSinkService) Shutdown() error {
	s.Sink.Close()
	return nil
}

// UpstreamService wraps the concrete collab.UpstreamChatService dialed for
// real verification and retry traffic.
type UpstreamService struct {
	Client collab.UpstreamChatService
}

// liveRegistry proxies every call to whatever Registry is currently live in
// a lifecycle.Runtime, so long-lived collaborators (the classifier, the
// verifier) built once at startup keep acting on the post-hot-reload
// Registry rather than the one that existed when they were constructed.
type liveRegistry struct {
	runtime *lifecycle.Runtime
}

func (r *liveRegistry) Keys() []string {
	return r.runtime.Get().Registry.Keys()
}

func (r *liveRegistry) IsModelAvailable(key, model string) bool {
	return r.runtime.Get().Registry.IsModelAvailable(key, model)
}

func (r *liveRegistry) ResetFailure(key string) bool {
	return r.runtime.Get().Registry.ResetFailure(key)
}

func (r *liveRegistry) MarkFailed(key string) {
	r.runtime.Get().Registry.MarkFailed(key)
}

func (r *liveRegistry) MarkModelCooling(key, model string) {
	r.runtime.Get().Registry.MarkModelCooling(key, model)
}

func (r *liveRegistry) GetNextWorking(model string) string {
	return r.runtime.Get().Registry.GetNextWorking(model)
}

func (r *liveRegistry) HandleAPIFailure(key string, attemptIndex int, model string) string {
	return r.runtime.Get().Registry.HandleAPIFailure(key, attemptIndex, model)
}

// LifecycleService owns the hot-reloadable Key Registry/Valid Key Pool pair,
// plus the error classifier bound to it through a stable liveRegistry proxy
// so the classifier itself never needs to be rebuilt across a reload.
type LifecycleService struct {
	runtime    *lifecycle.Runtime
	classifier *classifier.Classifier
	registry   *liveRegistry

	cfgSvc      *ConfigService
	upstreamSvc *UpstreamService
	loggerSvc   *LoggerService
}

// Get returns the live Registry/Pool pair.
func (s *LifecycleService) Get() *lifecycle.Instance {
	return s.runtime.Get()
}

// Classifier returns the shared error classifier.
func (s *LifecycleService) Classifier() *classifier.Classifier {
	return s.classifier
}

// Registry returns the stable live-registry proxy, suitable for any
// collaborator (such as the verifier) that should outlive individual
// hot-reloads.
func (s *LifecycleService) Registry() *liveRegistry {
	return s.registry
}

// RebuildFrom constructs a fresh Instance from cfg, migrating state forward
// from the currently live one, and swaps it in.
func (s *LifecycleService) RebuildFrom(cfg *config.Config) error {
	prev := s.runtime.Get()

	inst, err := lifecycle.New(
		cfg.Registry,
		cfg.Pool,
		cfg.Keys,
		s.classifier,
		s.upstreamSvc.Client,
		collab.RealClock{},
		*s.loggerSvc.Logger,
		prev,
	)
	if err != nil {
		return fmt.Errorf("rebuild key registry/pool: %w", err)
	}

	s.runtime.Store(inst)

	return nil
}

// StartWatching registers the Registry/Pool rebuild as a config-reload
// callback, so a hot-reloaded key list takes effect without a restart.
func (s *LifecycleService) StartWatching() {
	if s.cfgSvc == nil || s.cfgSvc.watcher == nil {
		return
	}

	s.cfgSvc.watcher.OnReload(func(newCfg *config.Config) error {
		if err := s.RebuildFrom(newCfg); err != nil {
			log.Error().Err(err).Msg("failed to rebuild key registry/pool after config reload")
			return err
		}

		log.Info().Msg("key registry/pool rebuilt after config reload")

		return nil
	})
}

// VerifierService wraps the scheduled verifier's background ticker loop. It
// is built once, over the stable liveRegistry proxy, so it keeps probing the
// post-hot-reload key set without needing to be restarted on reload.
type VerifierService struct {
	Verifier *verifier.Verifier
}

// Shutdown stops the verifier's background goroutine.
func (s *VerifierService) Shutdown() error {
	s.Verifier.Stop()
	return nil
}

// StatusSourceService adapts the live services into the statussrv.Source
// the status HTTP handler consumes.
type StatusSourceService struct {
	lifecycleSvc *LifecycleService
	verifierSvc  *VerifierService
}

func (s *StatusSourceService) Registry() statussrv.Registry { return s.lifecycleSvc.Get().Registry }
func (s *StatusSourceService) Pool() statussrv.Pool         { return s.lifecycleSvc.Get().Pool }
func (s *StatusSourceService) Verifier() statussrv.Verifier { return s.verifierSvc.Verifier }

var _ statussrv.Source = (*StatusSourceService)(nil)

// StatusServerService wraps the small JSON status/health HTTP server.
type StatusServerService struct {
	Server *proxy.Server
}

// Shutdown gracefully stops the status server.
func (s *StatusServerService) Shutdown() error {
	return s.Server.Shutdown(context.Background())
}

// RegisterSingletons registers all service providers as singletons.
// Services are registered in dependency order:
//  1. Config (no dependencies)
//  2. Logger (depends on Config)
//  3. LogSink (depends on Logger)
//  4. Upstream (no dependencies)
//  5. Lifecycle (depends on Config, LogSink, Upstream, Logger) — builds the
//     Registry/Pool pair and the classifier bound to it
//  6. Verifier (depends on Config, Lifecycle, Upstream, Logger)
//  7. StatusSource (depends on Lifecycle, Verifier)
//  8. StatusServer (depends on Config, StatusSource)
func RegisterSingletons(i do.Injector) {
	do.Provide(i, NewConfig)
	do.Provide(i, NewLogger)
	do.Provide(i, NewLogSink)
	do.Provide(i, NewUpstream)
	do.Provide(i, NewLifecycle)
	do.Provide(i, NewVerifier)
	do.Provide(i, NewStatusSource)
	do.Provide(i, NewStatusServer)
}

// NewConfig loads the configuration from the config path and creates a
// watcher. The watcher is created but not started — call StartWatching
// after the container is fully built.
func NewConfig(i do.Injector) (*ConfigService, error) {
	path := do.MustInvokeNamed[string](i, ConfigPathKey)

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config at %s: %w", path, err)
	}

	svc := &ConfigService{
		Config: cfg,
		path:   path,
		config: config.NewRuntime(cfg),
	}

	watcher, err := config.NewWatcher(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config watcher creation failed, hot-reload disabled")
	} else {
		svc.watcher = watcher
	}

	return svc, nil
}

// NewLogger creates the zerolog logger from configuration.
func NewLogger(i do.Injector) (*LoggerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)

	logger, err := proxy.NewLogger(cfgSvc.Get().Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &LoggerService{Logger: &logger}, nil
}

// NewLogSink creates the bounded fire-and-forget log queue.
func NewLogSink(i do.Injector) (*LogSinkService, error) {
	loggerSvc := do.MustInvoke[*LoggerService](i)

	return &LogSinkService{Sink: collab.NewQueueSink(*loggerSvc.Logger, logSinkQueueCapacity)}, nil
}

// NewUpstream creates the concrete UpstreamChatService dialed by the pool,
// the verifier, and any retry-driven real request.
func NewUpstream(_ do.Injector) (*UpstreamService, error) {
	return &UpstreamService{Client: upstream.NewAnthropicClient("")}, nil
}

// NewLifecycle builds the initial Registry/Pool pair, the classifier bound
// to it through a stable proxy, and the hot-reload runtime, then registers
// the rebuild callback with the config watcher.
func NewLifecycle(i do.Injector) (*LifecycleService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)
	logSinkSvc := do.MustInvoke[*LogSinkService](i)
	upstreamSvc := do.MustInvoke[*UpstreamService](i)

	cfg := cfgSvc.Get()

	registryProxy := &liveRegistry{}
	clf := classifier.New(registryProxy, logSinkSvc.Sink)

	inst, err := lifecycle.New(
		cfg.Registry,
		cfg.Pool,
		cfg.Keys,
		clf,
		upstreamSvc.Client,
		collab.RealClock{},
		*loggerSvc.Logger,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("build key registry/pool: %w", err)
	}

	runtime := lifecycle.NewRuntime(inst)
	registryProxy.runtime = runtime

	svc := &LifecycleService{
		runtime:     runtime,
		classifier:  clf,
		registry:    registryProxy,
		cfgSvc:      cfgSvc,
		upstreamSvc: upstreamSvc,
		loggerSvc:   loggerSvc,
	}
	svc.StartWatching()

	return svc, nil
}

// NewVerifier creates the scheduled verifier over the live-registry proxy,
// so it keeps probing the post-hot-reload key set for the life of the
// process.
func NewVerifier(i do.Injector) (*VerifierService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	loggerSvc := do.MustInvoke[*LoggerService](i)
	upstreamSvc := do.MustInvoke[*UpstreamService](i)
	lifecycleSvc := do.MustInvoke[*LifecycleService](i)

	cfg := cfgSvc.Get()

	v := verifier.New(
		cfg.Verifier,
		lifecycleSvc.Registry(),
		lifecycleSvc.Classifier(),
		upstreamSvc.Client,
		collab.RealClock{},
		*loggerSvc.Logger,
	)

	return &VerifierService{Verifier: v}, nil
}

// NewStatusSource adapts the live services into the statussrv.Source the
// status HTTP handler consumes.
func NewStatusSource(i do.Injector) (*StatusSourceService, error) {
	return &StatusSourceService{
		lifecycleSvc: do.MustInvoke[*LifecycleService](i),
		verifierSvc:  do.MustInvoke[*VerifierService](i),
	}, nil
}

// NewStatusServer builds the small JSON status/health HTTP server.
func NewStatusServer(i do.Injector) (*StatusServerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	sourceSvc := do.MustInvoke[*StatusSourceService](i)

	addr := cfgSvc.Get().Server.Listen

	return &StatusServerService{Server: proxy.NewServer(addr, statussrv.Handler(sourceSvc))}, nil
}
