// Package proxy forwards /api/voxcpm/* to the VoxCPM inference backend.
package proxy

import (
	"encoding/json"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/voicerly/voicerly-bff/internal/domain"
	"github.com/voicerly/voicerly-bff/internal/infra/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("proxy")

const (
	allowMethods = "GET, POST, OPTIONS, HEAD"
	allowHeaders = "Content-Type, Authorization"
	cacheControl = "no-store, private, max-age=0, must-revalidate"
)

// request headers never forwarded upstream
var droppedHeaders = []string{"Host", "Content-Length", "Connection", "Accept-Encoding"}

// VoxCPM is an http.Handler that relays requests to baseURL. It expects the
// mount prefix to be stripped already, so "/foo" goes to baseURL+"/foo".
type VoxCPM struct {
	baseURL string
	rp      *httputil.ReverseProxy
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewTransport returns the transport used for upstream calls. It has no
// overall timeout so long audio streams are not cut, and it never
// decompresses, so bodies pass through byte for byte.
func NewTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DisableCompression = true
	return t
}

// NewVoxCPM creates the proxy. An empty baseURL is allowed: every request
// then fails with 500 CONFIG_MISSING without touching the network.
func NewVoxCPM(baseURL string, transport http.RoundTripper, metrics *observability.Metrics, logger *zap.Logger) *VoxCPM {
	p := &VoxCPM{
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
	p.rp = &httputil.ReverseProxy{
		Rewrite:        p.rewrite,
		Transport:      transport,
		FlushInterval:  -1,
		ModifyResponse: p.modifyResponse,
		ErrorHandler:   p.errorHandler,
	}
	return p
}

func (p *VoxCPM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "VoxCPM.Proxy")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", r.Method),
		attribute.String("proxy.path", r.URL.Path),
	)

	if r.Method == http.MethodOptions {
		setCORS(w.Header())
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if p.baseURL == "" {
		p.logger.Error("proxy: upstream base url not configured")
		p.writeError(w, http.StatusInternalServerError, domain.CodeConfigMissing,
			(&domain.ErrMissingConfig{Key: "VOXCPM_BASE_URL"}).Error())
		return
	}

	if r.Method == http.MethodHead {
		w = headOnly{w}
	}
	p.rp.ServeHTTP(w, r.WithContext(ctx))
}

// Target builds the upstream URL for an inbound path and raw query.
func (p *VoxCPM) Target(escapedPath, rawQuery string) (*url.URL, error) {
	u, err := url.Parse(p.baseURL + "/" + strings.TrimLeft(escapedPath, "/"))
	if err != nil {
		return nil, err
	}
	u.RawQuery = rawQuery
	return u, nil
}

func (p *VoxCPM) rewrite(pr *httputil.ProxyRequest) {
	target, err := p.Target(pr.In.URL.EscapedPath(), pr.In.URL.RawQuery)
	if err != nil {
		// unparseable paths surface through ErrorHandler as a transport error
		target = &url.URL{}
	}
	pr.Out.URL = target
	pr.Out.Host = target.Host

	if pr.Out.Method == http.MethodHead {
		pr.Out.Method = http.MethodGet
		pr.Out.Body = http.NoBody
		pr.Out.ContentLength = 0
	}
	for _, h := range droppedHeaders {
		pr.Out.Header.Del(h)
	}
}

func (p *VoxCPM) modifyResponse(resp *http.Response) error {
	setCORS(resp.Header)
	p.metrics.IncrProxy(resp.StatusCode)
	if resp.StatusCode >= 500 {
		p.logger.Warn("proxy: upstream error status",
			zap.Int("status", resp.StatusCode),
			zap.String("path", resp.Request.URL.Path),
		)
	}
	return nil
}

func (p *VoxCPM) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	p.metrics.IncrProxy(0)
	p.metrics.IncrExternalError("voxcpm")
	p.logger.Error("proxy: upstream unreachable",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	p.writeError(w, http.StatusBadGateway, domain.CodeUpstreamUnreachable,
		(&domain.ErrUpstreamUnreachable{Err: err}).Error())
}

func (p *VoxCPM) writeError(w http.ResponseWriter, status int, code, msg string) {
	setCORS(w.Header())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(domain.Err(code, msg))
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", allowMethods)
	h.Set("Access-Control-Allow-Headers", allowHeaders)
	h.Set("Cache-Control", cacheControl)
}

// headOnly drops the body of a GET that stands in for a HEAD.
type headOnly struct {
	http.ResponseWriter
}

func (h headOnly) Write(b []byte) (int, error) { return len(b), nil }

// Flush keeps ReverseProxy's streaming flushes working through the wrapper.
func (h headOnly) Flush() {
	if f, ok := h.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (h headOnly) Unwrap() http.ResponseWriter { return h.ResponseWriter }
