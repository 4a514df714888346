package main

import (
	"context"
	"log/slog"
	"time"

	mediaws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	monitorws "github.com/gofiber/websocket/v2"

	"github.com/voxlane/go-frontdesk/internal/config"
	"github.com/voxlane/go-frontdesk/pkg/call"
	"github.com/voxlane/go-frontdesk/pkg/dialogue"
	"github.com/voxlane/go-frontdesk/pkg/monitor"
	"github.com/voxlane/go-frontdesk/pkg/notify"
	"github.com/voxlane/go-frontdesk/pkg/recording"
	"github.com/voxlane/go-frontdesk/pkg/synth"
	"github.com/voxlane/go-frontdesk/pkg/telephony"
)

// Server composes the fiber app, per-call collaborator factories and the
// process-wide shared state (config store, greeting cache, monitor hub).
type Server struct {
	app    *fiber.App
	cfg    *config.Config
	store  *config.Store
	logger *slog.Logger

	synth      synth.Provider
	greeting   *synth.GreetingCache
	recordings recording.Resolver
	hub        *monitor.Hub

	startedAt time.Time
}

// NewServer builds the server and its routes.
func NewServer(cfg *config.Config, store *config.Store, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		store:     store,
		logger:    logger.With("component", "server"),
		hub:       monitor.NewHub(logger),
		startedAt: time.Now(),
	}

	if err := s.buildSynth(); err != nil {
		return nil, err
	}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		s.recordings = recording.NewTwilioResolver(cfg.TwilioAccountSID, cfg.TwilioAuthToken,
			recording.WithLogger(logger))
	}

	app := fiber.New(fiber.Config{
		AppName:               "frontdesk",
		DisableStartupMessage: true,
	})

	app.Get("/healthz", s.handleHealth)
	app.Post("/voice/inbound", s.handleInbound)
	app.Post("/admin/reload", s.handleAdminReload)

	app.Use("/voice/media", func(c *fiber.Ctx) error {
		if mediaws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/voice/media", mediaws.New(s.handleMedia))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if monitorws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/monitor", monitorws.New(s.handleMonitor))

	s.app = app
	return s, nil
}

// buildSynth assembles the synthesis chain: ElevenLabs first, OpenAI
// fallback, and warms the greeting cache when possible.
func (s *Server) buildSynth() error {
	var providers []synth.Provider

	if s.cfg.ElevenLabsAPIKey != "" && s.cfg.ElevenLabsVoiceID != "" {
		el, err := synth.NewElevenLabs(
			synth.WithAPIKey(s.cfg.ElevenLabsAPIKey),
			synth.WithVoice(s.cfg.ElevenLabsVoiceID),
			synth.WithLogger(s.logger),
		)
		if err != nil {
			return err
		}
		providers = append(providers, el)
	}
	if s.cfg.OpenAIAPIKey != "" {
		oa, err := synth.NewOpenAI(
			synth.WithAPIKey(s.cfg.OpenAIAPIKey),
			synth.WithLogger(s.logger),
		)
		if err != nil {
			return err
		}
		providers = append(providers, oa)
	}

	if len(providers) == 0 {
		s.logger.Warn("no synthesis credentials set, calls will be silent")
		s.synth = synth.NewMock()
		return nil
	}

	chain, err := synth.NewChainWithLogger(s.logger, providers...)
	if err != nil {
		return err
	}
	s.synth = chain
	s.greeting = synth.NewGreetingCache(chain, s.logger)

	go s.warmGreeting()
	return nil
}

func (s *Server) warmGreeting() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap := s.store.Current(ctx)
	if err := s.greeting.Warm(ctx, snap.Greeting); err != nil {
		s.logger.Warn("greeting warm failed", "error", err)
	}
}

// Start runs the HTTP listener and the monitor hub.
func (s *Server) Start() error {
	go s.hub.Run()
	return s.app.Listen(s.cfg.ListenAddr)
}

// Shutdown stops the HTTP listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handleHealth reports liveness and basic runtime state.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":          "ok",
		"uptime_seconds":  int(time.Since(s.startedAt).Seconds()),
		"monitor_clients": s.hub.ClientCount(),
	})
}

// handleInbound answers the voice webhook with TwiML that connects the call
// to the media-stream endpoint.
func (s *Server) handleInbound(c *fiber.Ctx) error {
	callSID := c.FormValue("CallSid")
	caller := c.FormValue("From")

	host := s.cfg.PublicHost
	if host == "" {
		host = c.Hostname()
	}

	s.logger.Info("inbound call", "call_sid", callSID)

	c.Set(fiber.HeaderContentType, "application/xml")
	return c.SendString(telephony.ConnectStreamTwiML(host, callSID, caller))
}

// handleAdminReload forces an immediate configuration snapshot refresh.
func (s *Server) handleAdminReload(c *fiber.Ctx) error {
	if s.cfg.AdminToken == "" {
		return c.Status(fiber.StatusNotFound).SendString("disabled")
	}
	if c.Get("X-Admin-Token") != s.cfg.AdminToken {
		return c.Status(fiber.StatusUnauthorized).SendString("unauthorized")
	}

	if err := s.store.ForceRefresh(c.Context()); err != nil {
		s.logger.Error("admin reload failed", "error", err)
		return c.Status(fiber.StatusBadGateway).SendString("refresh failed")
	}
	if s.greeting != nil {
		go s.warmGreeting()
	}

	s.logger.Info("configuration reloaded by admin")
	return c.JSON(fiber.Map{"status": "reloaded"})
}

// handleMedia owns one media-stream connection: it builds the call session
// and pumps decoded transport messages into it until the socket closes.
func (s *Server) handleMedia(ws *mediaws.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	snap := s.store.Current(ctx)
	cancel()

	if s.cfg.OpenAIAPIKey == "" {
		s.logger.Error("media stream rejected, dialogue credentials missing")
		ws.Close()
		return
	}

	provider, err := dialogue.NewRealtime(
		dialogue.WithAPIKey(s.cfg.OpenAIAPIKey),
		dialogue.WithSystemPrompt(snap.SystemPrompt),
		dialogue.WithLogger(s.logger),
	)
	if err != nil {
		s.logger.Error("dialogue provider init failed", "error", err)
		ws.Close()
		return
	}

	var sink notify.Sink
	if snap.WebhookURL != "" {
		sink = notify.NewWebhook(snap.WebhookURL, notify.WithWebhookLogger(s.logger))
	}
	finalizer := call.NewFinalizer(sink, s.recordings, s.logger)
	finalizer.CallLogEnabled = snap.CallLogEnabled
	finalizer.DefaultCountry = snap.DefaultCountryCode

	sess := call.NewSession(telephony.NewConn(ws), call.SessionConfig{
		Snapshot:  snap,
		Dialogue:  provider,
		Synth:     s.synth,
		Greeting:  s.greeting,
		Secondary: s.secondaryDialogue(snap),
		Finalizer: finalizer,
		Gate:      call.DefaultGateConfig(),
		OnEvent: func(callID, kind, detail string) {
			s.hub.Publish(callID, kind, detail)
		},
		Logger: s.logger,
	})
	go sess.Run()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			sess.HandleTransportClosed(err)
			return
		}

		msg, err := telephony.Decode(data)
		if err != nil {
			// Malformed or unknown messages are dropped, not fatal.
			s.logger.Debug("dropping transport message", "error", err)
			continue
		}
		sess.HandleTransportMessage(msg)
	}
}

// secondaryDialogue returns a one-shot replacement provider factory when a
// secondary endpoint is configured.
func (s *Server) secondaryDialogue(snap *config.Snapshot) func() (dialogue.Provider, error) {
	if s.cfg.OpenAISecondaryBaseURL == "" {
		return nil
	}
	return func() (dialogue.Provider, error) {
		return dialogue.NewRealtime(
			dialogue.WithAPIKey(s.cfg.OpenAIAPIKey),
			dialogue.WithBaseURL(s.cfg.OpenAISecondaryBaseURL),
			dialogue.WithSystemPrompt(snap.SystemPrompt),
			dialogue.WithLogger(s.logger),
		)
	}
}

// handleMonitor attaches one dashboard client to the hub.
func (s *Server) handleMonitor(ws *monitorws.Conn) {
	monitor.NewClient(s.hub, ws).Run()
}
