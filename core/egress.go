package core

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/elazarl/goproxy"
	xproxy "golang.org/x/net/proxy"

	"fpshield/logger"
	"fpshield/models"
)

// userAgentPresets maps preset identifiers to the signature sent upstream
// when User-Agent spoofing is active.
var userAgentPresets = map[string]string{
	"windows-chrome":  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"macos-chrome":    "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"windows-firefox": "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
}

// EgressEngine is the network-level enforcement point: a forward proxy
// that selects, per destination, whether traffic goes direct or through an
// upstream profile, and applies the User-Agent rewrite subject to policy,
// bypass state and the challenge-infrastructure exemption.
type EgressEngine struct {
	mu          sync.Mutex
	cfg         models.Config
	mode        EgressMode
	bypass      *BypassCoordinator
	dialTimeout time.Duration
	srv         *http.Server
}

func NewEgressEngine(bypass *BypassCoordinator) *EgressEngine {
	return &EgressEngine{
		cfg:         models.DefaultConfig(),
		mode:        ModeDirect,
		bypass:      bypass,
		dialTimeout: 30 * time.Second,
	}
}

// Apply installs a new configuration and egress mode. Subsequent dials see
// the new routing immediately.
func (e *EgressEngine) Apply(cfg models.Config, mode EgressMode) {
	e.mu.Lock()
	e.cfg = cfg
	e.mode = mode
	e.mu.Unlock()
	logger.ProxyInfo("EgressEngine: applied %s mode (proxy enabled=%t, profiles=%d, routes=%d)",
		mode, cfg.Proxy.Enabled, len(cfg.Proxy.Profiles), len(cfg.Proxy.Routes))
}

func (e *EgressEngine) Mode() EgressMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *EgressEngine) snapshot() (models.Config, EgressMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg, e.mode
}

// UpstreamFor returns the profile a connection to hostname must transit,
// or nil for direct egress. In script mode the global allowlist, the proxy
// bypass list and the domain routes are consulted per destination; fixed
// mode always uses the active profile.
func (e *EgressEngine) UpstreamFor(hostname string) *models.ProxyProfile {
	cfg, mode := e.snapshot()
	if mode == ModeDirect {
		return nil
	}
	if mode == ModeScript && hostname != "" {
		if IsAllowlisted(hostname, cfg.GlobalAllowlist) || IsAllowlisted(hostname, cfg.Proxy.BypassList) {
			return nil
		}
		for _, route := range cfg.Proxy.Routes {
			if MatchesDomain(hostname, route.Pattern) {
				if p := cfg.Proxy.ProfileByName(route.Profile); p != nil {
					return p
				}
			}
		}
	}
	return cfg.Proxy.ProfileByName(cfg.Proxy.ActiveProfile)
}

// SpoofedUserAgent returns the User-Agent to substitute for requests to
// hostname, or "" when the real signature must pass through (protection
// inactive, active bypass, or the challenge service itself).
func (e *EgressEngine) SpoofedUserAgent(hostname string) string {
	cfg, _ := e.snapshot()
	if IsChallengeInfraHost(hostname) {
		return ""
	}
	if !ShouldActivate(&cfg, "https://"+hostname+"/", models.FeatureUserAgent) {
		return ""
	}
	if e.bypass != nil && e.bypass.Query(hostname).Active {
		return ""
	}
	if ua, ok := userAgentPresets[cfg.UserAgent.Preset]; ok {
		return ua
	}
	return userAgentPresets["windows-chrome"]
}

// Start runs the forward proxy on port. Blocks until the listener fails.
func (e *EgressEngine) Start(port string) error {
	proxy := goproxy.NewProxyHttpServer()
	if logger.ProxyLogger != nil {
		proxy.Logger = logger.ProxyLogger
	}

	proxy.Tr = &http.Transport{
		Proxy: e.transportProxy,
		Dial:  e.dialUpstream,
	}
	proxy.ConnectDialWithReq = func(req *http.Request, network, addr string) (net.Conn, error) {
		return e.dialUpstream(network, addr)
	}

	proxy.OnRequest().DoFunc(func(req *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
		hostname := req.URL.Hostname()
		if ua := e.SpoofedUserAgent(hostname); ua != "" {
			req.Header.Set("User-Agent", ua)
			logger.ProxyDebug("EgressEngine: rewrote User-Agent for %s", hostname)
		}
		return req, nil
	})

	srv := &http.Server{Addr: ":" + port, Handler: proxy}
	e.mu.Lock()
	e.srv = srv
	e.mu.Unlock()

	logger.ProxyInfo("EgressEngine: listening on :%s", port)
	return srv.ListenAndServe()
}

// Shutdown gracefully stops the listener started by Start, after which
// Start returns http.ErrServerClosed. Calling it when the proxy never
// started is a no-op.
func (e *EgressEngine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	srv := e.srv
	e.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// transportProxy routes plain-HTTP requests through HTTP(S) upstreams via
// the standard transport proxy hook. SOCKS upstreams return nil here and
// are handled in dialUpstream instead.
func (e *EgressEngine) transportProxy(req *http.Request) (*url.URL, error) {
	up := e.UpstreamFor(req.URL.Hostname())
	if up == nil || up.Scheme == models.SchemeSOCKS5 || up.Scheme == models.SchemeSOCKS4 {
		return nil, nil
	}
	return &url.URL{
		Scheme: up.Scheme,
		Host:   net.JoinHostPort(up.Host, strconv.Itoa(up.Port)),
	}, nil
}

func (e *EgressEngine) dialUpstream(network, addr string) (net.Conn, error) {
	hostname, _, err := net.SplitHostPort(addr)
	if err != nil {
		hostname = addr
	}
	up := e.UpstreamFor(hostname)
	if up == nil {
		return net.DialTimeout(network, addr, e.dialTimeout)
	}

	endpoint := net.JoinHostPort(up.Host, strconv.Itoa(up.Port))
	if addr == endpoint {
		// The transport proxy hook already routed this request to the
		// upstream; this dial is the hop to the upstream itself.
		return net.DialTimeout(network, addr, e.dialTimeout)
	}
	switch up.Scheme {
	case models.SchemeSOCKS5:
		target := addr
		if !up.RemoteDNS {
			resolved, rerr := resolveLocally(addr)
			if rerr != nil {
				return nil, fmt.Errorf("local DNS resolution for %s: %w", addr, rerr)
			}
			target = resolved
		}
		dialer, derr := xproxy.SOCKS5("tcp", endpoint, nil, &net.Dialer{Timeout: e.dialTimeout})
		if derr != nil {
			return nil, fmt.Errorf("building SOCKS dialer for %s: %w", endpoint, derr)
		}
		return dialer.Dial(network, target)
	case models.SchemeSOCKS4:
		return e.dialSOCKS4(up, endpoint, addr)
	case models.SchemeHTTP, models.SchemeHTTPS:
		return e.connectThroughHTTPProxy(up, endpoint, addr)
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q in profile %q", up.Scheme, up.Name)
	}
}

// dialSOCKS4 opens a CONNECT through a SOCKS4 upstream. The base protocol
// only carries an IPv4 address, so hostnames are resolved locally; with
// RemoteDNS set the SOCKS4a extension (invalid IP 0.0.0.x plus a trailing
// hostname) delegates resolution to the upstream instead.
func (e *EgressEngine) dialSOCKS4(up *models.ProxyProfile, endpoint, addr string) (net.Conn, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("splitting target %s: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid target port in %s", addr)
	}

	var hostname string
	ip := net.ParseIP(host)
	if ip == nil && up.RemoteDNS {
		hostname = host
		ip = net.IPv4(0, 0, 0, 1)
	} else if ip == nil {
		ips, rerr := net.LookupIP(host)
		if rerr != nil {
			return nil, fmt.Errorf("local DNS resolution for %s: %w", host, rerr)
		}
		for _, candidate := range ips {
			if candidate.To4() != nil {
				ip = candidate
				break
			}
		}
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("no IPv4 address for %s (socks4 carries IPv4 only)", host)
	}

	conn, err := net.DialTimeout("tcp", endpoint, e.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dialing upstream %s: %w", endpoint, err)
	}

	req := []byte{4, 1, byte(port >> 8), byte(port), ip4[0], ip4[1], ip4[2], ip4[3], 0}
	if hostname != "" {
		req = append(req, hostname...)
		req = append(req, 0)
	}
	if _, err := conn.Write(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("writing SOCKS4 request to %s: %w", endpoint, err)
	}

	resp := make([]byte, 8)
	if _, err := io.ReadFull(conn, resp); err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading SOCKS4 response from %s: %w", endpoint, err)
	}
	if resp[1] != 0x5a {
		conn.Close()
		return nil, fmt.Errorf("upstream %s rejected SOCKS4 CONNECT to %s (code 0x%02x)", endpoint, addr, resp[1])
	}
	return conn, nil
}

// connectThroughHTTPProxy opens a CONNECT tunnel to addr through an
// HTTP(S) upstream.
func (e *EgressEngine) connectThroughHTTPProxy(up *models.ProxyProfile, endpoint, addr string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", endpoint, e.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dialing upstream %s: %w", endpoint, err)
	}
	if up.Scheme == models.SchemeHTTPS {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: up.Host})
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("TLS handshake with upstream %s: %w", endpoint, err)
		}
		conn = tlsConn
	}

	fmt.Fprintf(conn, "CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", addr, addr)
	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("reading CONNECT response from %s: %w", endpoint, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		conn.Close()
		return nil, fmt.Errorf("upstream %s refused CONNECT to %s: %s", endpoint, addr, resp.Status)
	}
	return conn, nil
}

func resolveLocally(addr string) (string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return "", fmt.Errorf("no addresses for %s: %w", host, err)
	}
	return net.JoinHostPort(ips[0].String(), port), nil
}
