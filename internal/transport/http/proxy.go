package http

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/astro-web3/teams-gate/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ForwardHeaders struct {
	TeamID string
	UserID string
}

// NewUpstreamProxy forwards requests to the collaboration backend. Gate
// results are passed on in the forward headers; client-supplied copies are
// always removed first.
func NewUpstreamProxy(target *url.URL, headers ForwardHeaders, transport http.RoundTripper) gin.HandlerFunc {
	if transport == nil {
		transport = http.DefaultTransport
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		Transport: otelhttp.NewTransport(transport),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ErrorContext(r.Context(), "upstream request failed",
				slog.String("path", r.URL.Path),
				logger.Err(err),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"bad gateway"}`))
		},
	}

	return func(c *gin.Context) {
		h := c.Request.Header
		h.Del(headers.TeamID)
		h.Del(headers.UserID)

		if teamID := c.GetString(ctxKeyTeamID); teamID != "" {
			h.Set(headers.TeamID, teamID)
		}
		if userID := c.GetString(ctxKeyUserID); userID != "" {
			h.Set(headers.UserID, userID)
		}

		proxy.ServeHTTP(c.Writer, c.Request)
	}
}
