package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/qa-reports-api/pkg/config"
	"github.com/noah-isme/qa-reports-api/pkg/middleware/requestid"
)

// Tracker forwards server-side failures to Sentry. A tracker built without a
// DSN is disabled and every method is a no-op.
type Tracker struct {
	hub *sentry.Hub
}

// New builds a tracker on its own hub. transport may be nil to use the SDK default.
func New(cfg config.SentryConfig, env string, transport sentry.Transport) (*Tracker, error) {
	if cfg.DSN == "" && transport == nil {
		return &Tracker{}, nil
	}
	rate := cfg.SampleRate
	if rate <= 0 || rate > 1 {
		rate = 1
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      env,
		Release:          cfg.Release,
		SampleRate:       rate,
		AttachStacktrace: true,
		ServerName:       "",
		Transport:        transport,
		BeforeSend:       scrubRequest,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry client: %w", err)
	}
	return &Tracker{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Enabled reports whether events are delivered anywhere.
func (t *Tracker) Enabled() bool {
	return t != nil && t.hub != nil
}

// CaptureError reports err with the given tags.
func (t *Tracker) CaptureError(err error, tags map[string]string) {
	if !t.Enabled() || err == nil {
		return
	}
	t.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		t.hub.CaptureException(err)
	})
}

// Flush waits up to timeout for buffered events to be sent.
func (t *Tracker) Flush(timeout time.Duration) bool {
	if !t.Enabled() {
		return true
	}
	return t.hub.Flush(timeout)
}

// GinMiddleware reports panics and 5xx responses. Panics are re-raised so the
// outer recovery middleware still writes the response.
func (t *Tracker) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.Enabled() {
			c.Next()
			return
		}
		defer func() {
			if r := recover(); r != nil {
				t.hub.WithScope(func(scope *sentry.Scope) {
					scope.SetTags(requestTags(c, 500))
					t.hub.Recover(r)
				})
				panic(r)
			}
		}()

		c.Next()

		status := c.Writer.Status()
		if status < 500 {
			return
		}
		err := errors.New(c.Request.Method + " " + c.FullPath() + " failed")
		if last := c.Errors.Last(); last != nil {
			err = last.Err
		}
		t.CaptureError(err, requestTags(c, status))
	}
}

func requestTags(c *gin.Context, status int) map[string]string {
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	tags := map[string]string{
		"method": c.Request.Method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	if id := requestid.Value(c); id != "" {
		tags["request_id"] = id
	}
	return tags
}

// scrubRequest drops request payloads, cookies and auth headers before sending.
func scrubRequest(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		event.Request.Data = ""
		event.Request.Cookies = ""
		delete(event.Request.Headers, "Authorization")
		delete(event.Request.Headers, "Cookie")
	}
	event.User = sentry.User{}
	return event
}
