package sipsession

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Laky-64/gologging"
	"github.com/emiago/diago"
	"github.com/emiago/sipgo/sip"
	"github.com/google/uuid"
)

// Service answers inbound SIP calls and bridges each one to the configured
// remote speech AI over WebSocket for its lifetime.
type Service struct {
	cfg        Config
	sip        *diago.Diago
	logger     *slog.Logger
	authServer *diago.DigestAuthServer

	activeCalls atomic.Int64
}

// NewService wires a diago UA to the bridging logic. logger may be nil.
func NewService(cfg Config, sipUA *diago.Diago, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	gologging.SetLevel(gologging.FatalLevel)

	var authServer *diago.DigestAuthServer
	if cfg.SIPAuthUser != "" && cfg.SIPAuthPass != "" {
		authServer = diago.NewDigestServer()
	}

	return &Service{
		cfg:        cfg,
		sip:        sipUA,
		logger:     logger,
		authServer: authServer,
	}
}

// Start blocks serving inbound SIP dialogs until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	return s.sip.Serve(ctx, s.handleIncoming)
}

func (s *Service) handleIncoming(inDialog *diago.DialogServerSession) {
	callStart := time.Now()
	callLogger := s.logger.With(
		"session_id", uuid.New().String(),
		"call_id", sipCallID(inDialog),
		"sip_from", inDialog.FromUser(),
		"sip_to", inDialog.ToUser(),
	)
	callLogger.Info("sip: incoming call")

	if err := s.authorizeInbound(inDialog, callLogger); err != nil {
		callLogger.Info("sip: call rejected (auth failed)")
		return
	}
	if !s.allowCall(callLogger) {
		_ = inDialog.Respond(sip.StatusBusyHere, "Busy", nil)
		return
	}
	defer s.activeCalls.Add(-1)
	defer inDialog.Close()

	if err := inDialog.Trying(); err != nil {
		callLogger.Warn("sip: trying failed", "error", err)
	}
	if err := inDialog.Ringing(); err != nil {
		callLogger.Warn("sip: ringing failed", "error", err)
	}

	callCtx, cancel := context.WithTimeout(inDialog.Context(), s.cfg.EstablishTimeout)
	defer cancel()

	localCodecs := PreferredCodecs(s.cfg.FrameDuration)
	if err := inDialog.AnswerOptions(diago.AnswerOptions{Codecs: localCodecs}); err != nil {
		callLogger.Warn("sip: answer failed", "error", err)
		return
	}
	callLogger.Info("sip: call answered, setting up media")

	endpoint, err := NewEndpoint(inDialog, s.cfg.FrameDuration)
	if err != nil {
		callLogger.Warn("sip: codec negotiation failed", "error", err)
		return
	}
	callLogger.Info("sip: codec negotiated", "payload_type", endpoint.PayloadType)

	session, err := newCallSession(callCtx, callLogger, endpoint, s.cfg)
	if err != nil {
		callLogger.Warn("sip: ai bridge setup failed", "error", err)
		return
	}

	callLogger.Info("sip: call in progress (media bridged)")
	session.Run(inDialog.Context())
	callLogger.Info("sip: call ended", "duration", time.Since(callStart).Round(time.Millisecond))
}

func (s *Service) allowCall(logger *slog.Logger) bool {
	if s.cfg.MaxActiveCalls <= 0 {
		s.activeCalls.Add(1)
		return true
	}
	for {
		current := s.activeCalls.Load()
		if current >= s.cfg.MaxActiveCalls {
			logger.Warn("active call limit reached", "max", s.cfg.MaxActiveCalls)
			return false
		}
		if s.activeCalls.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (s *Service) authorizeInbound(dialog *diago.DialogServerSession, logger *slog.Logger) error {
	if s.authServer == nil {
		return nil
	}
	auth := diago.DigestAuth{
		Username: s.cfg.SIPAuthUser,
		Password: s.cfg.SIPAuthPass,
		Realm:    s.cfg.SIPAuthRealm,
	}
	if err := s.authServer.AuthorizeDialog(dialog, auth); err != nil {
		logger.Warn("sip auth failed", "error", err)
		return err
	}
	return nil
}

func sipCallID(dialog *diago.DialogServerSession) string {
	if dialog == nil || dialog.InviteRequest == nil || dialog.InviteRequest.CallID() == nil {
		return ""
	}
	return dialog.InviteRequest.CallID().Value()
}
