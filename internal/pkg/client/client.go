package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/buildgate/buildgate/internal/pkg/build"
	"github.com/buildgate/buildgate/internal/pkg/utils"
)

const (
	RequestTimeout        = 30 * time.Second
	HttpTimeout           = 30 * time.Second
	IdleConnTimeout       = 30 * time.Second
	TLSHandshakeTimeout   = 10 * time.Second
	ResponseHeaderTimeout = 20 * time.Second
	ExpectContinueTimeout = 2 * time.Second
	KeepAlive             = 20 * time.Second
	MaxIdleConns          = 32
	RetryCount            = 5
	RetryWaitTime         = 100 * time.Millisecond
	RetryWaitTimeMax      = 3 * time.Second
)

// ErrorWithResponse is implemented by API error payloads that keep the
// failed HTTP response attached.
type ErrorWithResponse interface {
	error
	SetResponse(response *resty.Response)
	HttpStatus() int
	IsNotFound() bool
	IsUnauthorized() bool
}

// Client - http client, transport level retry for the record store API lives here.
type Client struct {
	logger           *Logger
	resty            *resty.Client                                  // wrapped http client
	requestIdCounter *utils.SafeCounter                             // each request has unique ID -> for logs
	retries          map[*resty.Request]uint                        // retry attempts per request -> for logs
	backoffs         map[*resty.Request]*backoff.ExponentialBackOff // retry delays per request
}

type contextKey string

func NewClient(logger *zap.SugaredLogger, verbose bool) *Client {
	client := &Client{}
	client.logger = &Logger{logger}
	client.resty = createHttpClient(client.logger)
	client.requestIdCounter = utils.NewSafeCounter(0)
	client.retries = make(map[*resty.Request]uint)
	client.backoffs = make(map[*resty.Request]*backoff.ExponentialBackOff)
	client.resty.SetRetryAfter(client.nextRetryDelay)
	setupLogs(client, verbose)
	return client
}

func (c Client) WithHostUrl(hostUrl string) *Client {
	c.resty.SetBaseURL(hostUrl)
	return &c
}

func (c *Client) GetRestyClient() *resty.Client {
	return c.resty
}

// R prepares a request with a unique id, so its log lines can be correlated.
func (c *Client) R(ctx context.Context) *resty.Request {
	id := c.requestIdCounter.IncAndGet()
	return c.resty.R().SetContext(context.WithValue(ctx, contextKey("requestId"), id))
}

func (c *Client) HostUrl() string {
	return c.resty.BaseURL
}

func (c *Client) SetHeader(header, value string) *Client {
	c.resty.SetHeader(header, value)
	return c
}

func (c *Client) SetError(err interface{}) *Client {
	c.resty.SetError(err)
	return c
}

func (c *Client) SetRetry(count int, waitTime time.Duration, maxWaitTime time.Duration) {
	c.resty.RetryWaitTime = waitTime
	c.resty.RetryMaxWaitTime = maxWaitTime
	c.resty.RetryCount = count
}

// nextRetryDelay - wait before the next attempt, each request follows its own
// exponential backoff. Resty clamps the value by the wait time limits.
func (c *Client) nextRetryDelay(_ *resty.Client, res *resty.Response) (time.Duration, error) {
	b, found := c.backoffs[res.Request]
	if !found {
		b = newBackoff()
		c.backoffs[res.Request] = b
	}

	delay := b.NextBackOff()
	if delay == backoff.Stop {
		return 0, fmt.Errorf("request retry budget exceeded")
	}
	return delay, nil
}

func createHttpClient(logger *Logger) *resty.Client {
	r := resty.New()
	r.SetLogger(logger)
	r.SetHeader("User-Agent", build.UserAgent())
	r.SetTimeout(RequestTimeout)
	r.SetRetryCount(RetryCount)
	r.SetRetryWaitTime(RetryWaitTime)
	r.SetRetryMaxWaitTime(RetryWaitTimeMax)
	r.SetTransport(createTransport())
	r.AddRetryCondition(createRetry())
	return r
}

// createRetry - retry on defined network and HTTP errors.
func createRetry() func(response *resty.Response, err error) bool {
	return func(response *resty.Response, err error) bool {
		// On network errors - except hostname not found
		if err != nil && (response == nil || response.StatusCode() == 0) {
			switch {
			case
				strings.Contains(err.Error(), "No address associated with hostname"):
				return false
			default:
				return true
			}
		}

		// On HTTP status codes
		switch response.StatusCode() {
		case
			http.StatusRequestTimeout,
			http.StatusConflict,
			http.StatusLocked,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
}

// createTransport with custom timeouts.
func createTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   HttpTimeout,
		KeepAlive: KeepAlive,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          MaxIdleConns,
		IdleConnTimeout:       IdleConnTimeout,
		TLSHandshakeTimeout:   TLSHandshakeTimeout,
		ResponseHeaderTimeout: ResponseHeaderTimeout,
		ExpectContinueTimeout: ExpectContinueTimeout,
		MaxIdleConnsPerHost:   MaxIdleConns,
	}
}

func setupLogs(client *Client, verbose bool) {
	// Debug full request and response if verbose = true
	// Secrets are hidden, see Logger
	if verbose {
		client.resty.SetDebug(true)
		client.resty.SetDebugBodyLimit(32 * 1024)
	}

	// Log each retry attempt
	client.resty.AddRetryHook(func(res *resty.Response, err error) {
		client.retries[res.Request]++
		attempt := client.retries[res.Request]
		if int(attempt) <= client.resty.RetryCount {
			client.logger.Warnf("%s | Retrying %dx ...", responseToLog(res), attempt)
		}
	})

	// Log each request when done
	client.resty.OnAfterResponse(func(c *resty.Client, res *resty.Response) error {
		if res.IsSuccess() {
			client.logger.Debugf("%s", responseToLog(res))
			delete(client.retries, res.Request)
			delete(client.backoffs, res.Request)
		}

		// Return API error if present
		err := res.Error()
		if err != nil {
			// Attach response to the error if supported
			if v, ok := err.(ErrorWithResponse); ok {
				v.SetResponse(res)
			}

			// Return err, wrap if needed
			if v, ok := err.(error); ok {
				return v
			}
			return fmt.Errorf(`%s %s | error: "%s"`, res.Request.Method, res.Request.URL, err)
		}

		// Return error if request failed
		if res.IsError() {
			return fmt.Errorf(`%s %s | returned http code %d`, res.Request.Method, res.Request.URL, res.StatusCode())
		}

		return nil
	})
}

func responseToLog(res *resty.Response) string {
	req := res.Request
	if id, ok := req.Context().Value(contextKey("requestId")).(int); ok {
		return fmt.Sprintf("[%d] %s %s | %d | %s", id, req.Method, req.URL, res.StatusCode(), res.Time())
	}
	return fmt.Sprintf("%s %s | %d | %s", req.Method, req.URL, res.StatusCode(), res.Time())
}
