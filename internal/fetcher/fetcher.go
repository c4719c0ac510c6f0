package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pricetrack/internal/assert"
	"pricetrack/internal/chrono"
	"pricetrack/internal/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_fetcher_fetch = "fetcher.fetch"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

const DefaultTimeout = time.Second * 30

// Options is the client policy shared by every request made by a Fetcher.
type Options struct {
	// UserAgent defaults to DefaultUserAgent, a realistic browser identity since
	// some sources reject default clients.
	UserAgent string
	// Timeout bounds each request when the Request itself does not set one.
	Timeout time.Duration
	// RequestsPerSecond is 0 for no limit.
	RequestsPerSecond float64
	// CloudflareBypass wraps the transport with cloudflare-bp-go.
	CloudflareBypass bool
	// Dump receives full request/response text when set.
	Dump telemetry.DumpOutput
	// Transport replaces the default http transport, mostly for tests.
	Transport http.RoundTripper
}

// Request describes a single document retrieval.
type Request struct {
	// Method defaults to GET.
	Method  string
	URL     string
	Headers map[string]string
	// Body is sent as JSON when it is not nil.
	Body    any
	Timeout time.Duration
}

// RawDocument is a fully received payload with a success status.
type RawDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	RetrievedAt time.Time
	// Attempts is the number of requests it took to retrieve the document.
	Attempts int
}

type Fetcher struct {
	http    *resty.Client
	timeout time.Duration
	time    chrono.TimeAPI
	tel     telemetry.API
}

func New(opts Options, time chrono.TimeAPI, tel telemetry.API) *Fetcher {
	assert.NotNil(time)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("fetcher", tel)

	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	httpClient := resty.New()
	if opts.Transport != nil {
		httpClient.SetTransport(opts.Transport)
	}
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetTimeout(opts.Timeout)
	httpClient.SetRetryCount(0)

	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, tel, opts.Dump)

	return &Fetcher{
		http:    httpClient,
		timeout: opts.Timeout,
		time:    time,
		tel:     tel,
	}
}

// Fetch retrieves a document. It either returns the whole body of a 2xx
// response or a *FetchError, it never retries.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (RawDocument, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = f.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	r := f.http.R().
		SetContext(ctx).
		SetHeaders(req.Headers)
	if req.Body != nil {
		r.SetHeader("content-type", "application/json").
			SetBody(req.Body)
	}

	res, err := r.Execute(method, req.URL)
	if err != nil {
		ferr := classify(req.URL, err)
		f.tel.ReportBroken(report_fetcher_fetch, ferr, method)
		return RawDocument{}, ferr
	}

	if !res.IsSuccess() {
		ferr := &FetchError{
			Kind:       ErrHTTPStatus,
			URL:        req.URL,
			StatusCode: res.StatusCode(),
			Err:        fmt.Errorf("%s", res.Status()),
		}
		f.tel.ReportWarning(report_fetcher_fetch, ferr, method)
		return RawDocument{}, ferr
	}

	body := res.Body()
	declared := res.RawResponse.ContentLength
	if declared >= 0 && int64(len(body)) != declared {
		ferr := &FetchError{
			Kind: ErrNetwork,
			URL:  req.URL,
			Err:  fmt.Errorf("truncated body: received %d of %d bytes", len(body), declared),
		}
		f.tel.ReportBroken(report_fetcher_fetch, ferr, method)
		return RawDocument{}, ferr
	}

	return RawDocument{
		URL:         req.URL,
		StatusCode:  res.StatusCode(),
		ContentType: res.Header().Get("content-type"),
		Body:        body,
		RetrievedAt: f.time.Now(),
		Attempts:    1,
	}, nil
}
