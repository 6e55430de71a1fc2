package http

import (
	"context"
	"net/http"
	"time"

	"github.com/astro-web3/teams-gate/pkg/tracer"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultRetry   = 0
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	AuthToken  string
}

// Client is a traced JSON client on top of resty. Retries only fire on
// transport errors and 5xx responses.
type Client struct {
	rc *resty.Client
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RetryCount < 0 {
		opts.RetryCount = DefaultRetry
	}

	rc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || (resp != nil && resp.StatusCode() >= http.StatusInternalServerError)
		}).
		SetHeader("Accept", "application/json")

	if opts.AuthToken != "" {
		rc.SetAuthToken(opts.AuthToken)
	}

	return &Client{rc: rc}
}

type RequestOption func(*resty.Request)

func WithPathParams(params map[string]string) RequestOption {
	return func(r *resty.Request) {
		r.SetPathParams(params)
	}
}

func (c *Client) Request(ctx context.Context, method, url string, opts ...RequestOption) (*resty.Response, error) {
	ctx, span := startClientSpan(ctx, method, url)
	defer span.End()

	request := c.rc.R().SetContext(ctx)
	for _, opt := range opts {
		opt(request)
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(request.Header))

	resp, err := request.Execute(method, url)

	recordSpan(span, resp, err)
	return resp, err
}

func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*resty.Response, error) {
	return c.Request(ctx, http.MethodGet, url, opts...)
}

func startClientSpan(ctx context.Context, method, url string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return tracer.Start(ctx, "http.Request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", url),
		),
	)
}

func recordSpan(span trace.Span, resp *resty.Response, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if resp == nil {
		return
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	if resp.StatusCode() >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, resp.Status())
		return
	}
	span.SetStatus(codes.Ok, "")
}
