// Package proxy implements the Anthropic-facing HTTP handlers and the
// translation glue between the client connection and the upstream client.
package proxy

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mixaill76/claude_openai_bridge/internal/auth"
	"github.com/mixaill76/claude_openai_bridge/internal/config"
	"github.com/mixaill76/claude_openai_bridge/internal/fail2ban"
	"github.com/mixaill76/claude_openai_bridge/internal/monitoring"
	"github.com/mixaill76/claude_openai_bridge/internal/session"
	"github.com/mixaill76/claude_openai_bridge/internal/upstream"
	"github.com/mixaill76/claude_openai_bridge/internal/usagelog"
)

// Proxy holds every collaborator of the request path.
type Proxy struct {
	cfg      *config.Config
	log      *slog.Logger
	upstream *upstream.Client
	sessions *session.Manager
	gate     *auth.Gate
	bans     *fail2ban.Fail2Ban // nil when auth banning is disabled
	metrics  *monitoring.Metrics
	usage    *usagelog.Logger // nil when usage logging is disabled
}

// New wires the proxy together.
func New(
	cfg *config.Config,
	log *slog.Logger,
	upstreamClient *upstream.Client,
	sessions *session.Manager,
	gate *auth.Gate,
	bans *fail2ban.Fail2Ban,
	metrics *monitoring.Metrics,
	usage *usagelog.Logger,
) *Proxy {
	return &Proxy{
		cfg:      cfg,
		log:      log,
		upstream: upstreamClient,
		sessions: sessions,
		gate:     gate,
		bans:     bans,
		metrics:  metrics,
		usage:    usage,
	}
}

// authenticate runs the ban check and the key gate, writing the error
// response itself on failure.
func (p *Proxy) authenticate(w http.ResponseWriter, r *http.Request) (auth.ClientAuth, bool) {
	clientIP := clientIPFromRequest(r)

	if p.bans != nil && p.bans.IsBanned(clientIP) {
		p.log.Warn("Rejecting banned client", "client_ip", clientIP)
		WriteErrorRateLimit(w, "Too many failed authentication attempts. Please retry later.")
		return auth.ClientAuth{}, false
	}

	clientAuth, err := p.gate.Validate(r)
	if err != nil {
		p.metrics.RecordAuthFailure()
		if p.bans != nil {
			p.bans.RecordFailure(clientIP)
		}
		WriteErrorUnauthorized(w, err.Error())
		return auth.ClientAuth{}, false
	}
	if p.bans != nil && p.gate.Enabled() {
		p.bans.RecordSuccess(clientIP)
	}
	return clientAuth, true
}

// readBody reads the request body under the configured size cap.
// The bool result reports whether the caller may proceed.
func (p *Proxy) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	limited := io.LimitReader(r.Body, int64(p.cfg.RequestBodyMaxSize)+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		WriteErrorBadRequest(w, "failed to read request body: "+err.Error())
		return nil, false
	}
	if len(body) > p.cfg.RequestBodyMaxSize {
		WriteErrorTooLarge(w, "request body exceeds the configured maximum size")
		return nil, false
	}
	return body, true
}

// resolveSession derives the client identity and returns its session id.
func (p *Proxy) resolveSession(r *http.Request, clientAuth auth.ClientAuth, estimatedTokens int) (string, string) {
	deviceID := strings.TrimSpace(r.Header.Get("x-device-id"))
	if deviceID == "" {
		deviceID = clientAuth.DeviceTag
	}
	identity := session.IdentityKey(deviceID, clientAuth.BaseKey, clientIPFromRequest(r))

	sessionID := p.sessions.Resolve(identity)
	if estimatedTokens > 0 {
		p.sessions.AddUsage(identity, estimatedTokens)
	}
	p.metrics.UpdateActiveSessions(p.sessions.Len())
	return identity, sessionID
}

// clientIPFromRequest resolves the originating client address, preferring
// forwarding headers over the TCP peer.
func clientIPFromRequest(r *http.Request) string {
	for _, header := range []string{"x-forwarded-for", "x-real-ip"} {
		raw := r.Header.Get(header)
		if raw == "" {
			continue
		}
		for _, segment := range strings.Split(raw, ",") {
			candidate := strings.Trim(strings.TrimSpace(segment), `"`)
			if candidate == "" || strings.EqualFold(candidate, "unknown") {
				continue
			}
			if ip := parseIPCandidate(candidate); ip != "" {
				return ip
			}
		}
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func parseIPCandidate(candidate string) string {
	if ip := net.ParseIP(candidate); ip != nil {
		return ip.String()
	}
	if host, _, err := net.SplitHostPort(candidate); err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip.String()
		}
	}
	return ""
}

// newRequestID tags log lines of one request.
func newRequestID() string {
	return uuid.NewString()
}

// wantsStream reports whether the client selected SSE via body or header.
func wantsStream(r *http.Request, bodyStream bool) bool {
	if bodyStream {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream")
}
