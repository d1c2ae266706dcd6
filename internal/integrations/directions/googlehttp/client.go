package googlehttp

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/BearBump/RouteWatch/internal/integrations/directions"
	"github.com/BearBump/RouteWatch/internal/models"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com"
	DefaultTimeout = 10 * time.Second

	directionsPath = "/maps/api/directions/json"
	fieldMask      = "routes/legs/duration,routes/legs/duration_in_traffic,status,error_message"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	limiter *rate.Limiter
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.httpc.Timeout = d
	}
	return c
}

// WithRateLimit smooths outgoing requests to at most rps per second.
func (c *Client) WithRateLimit(rps float64) *Client {
	if rps > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return c
}

type durationValue struct {
	Value *int64 `json:"value"`
}

type directionsResp struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Legs []struct {
			Duration          *durationValue `json:"duration"`
			DurationInTraffic *durationValue `json:"duration_in_traffic"`
		} `json:"legs"`
	} `json:"routes"`
}

func (c *Client) FetchTraffic(ctx context.Context, origin, destination models.Coordinate) (models.TrafficSample, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return models.TrafficSample{}, &directions.Error{Kind: directions.KindTimeout, Message: "rate limit wait", Err: err}
		}
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return models.TrafficSample{}, &directions.Error{Kind: directions.KindTransport, Err: errors.Wrap(err, "parse base url")}
	}
	// keep any prefix of the base url, e.g. a proxy mount
	if u.Path == "" {
		u.Path = "/"
	}
	u = u.JoinPath(directionsPath)

	q := u.Query()
	q.Set("origin", origin.String())
	q.Set("destination", destination.String())
	q.Set("departure_time", "now")
	q.Set("traffic_model", "best_guess")
	q.Set("fields", fieldMask)
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return models.TrafficSample{}, &directions.Error{Kind: directions.KindTransport, Err: errors.Wrap(err, "new request")}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return models.TrafficSample{}, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return models.TrafficSample{}, &directions.Error{
			Kind:   directions.KindHTTPStatus,
			Status: strconv.Itoa(resp.StatusCode),
		}
	}

	var r directionsResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		if isTimeout(err) {
			return models.TrafficSample{}, &directions.Error{Kind: directions.KindTimeout, Err: errors.Wrap(err, "read body")}
		}
		return models.TrafficSample{}, &directions.Error{Kind: directions.KindMalformed, Err: errors.Wrap(err, "decode")}
	}
	return sampleFrom(r)
}

func sampleFrom(r directionsResp) (models.TrafficSample, error) {
	if r.Status != "OK" {
		return models.TrafficSample{}, &directions.Error{
			Kind:    directions.KindAPIStatus,
			Status:  r.Status,
			Message: r.ErrorMessage,
		}
	}
	if len(r.Routes) == 0 {
		return models.TrafficSample{}, &directions.Error{Kind: directions.KindMalformed, Status: r.Status, Message: "no routes"}
	}
	if len(r.Routes[0].Legs) == 0 {
		return models.TrafficSample{}, &directions.Error{Kind: directions.KindMalformed, Status: r.Status, Message: "no legs"}
	}
	leg := r.Routes[0].Legs[0]
	if leg.Duration == nil || leg.Duration.Value == nil || leg.DurationInTraffic == nil || leg.DurationInTraffic.Value == nil {
		return models.TrafficSample{}, &directions.Error{Kind: directions.KindMalformed, Status: r.Status, Message: "missing duration or duration_in_traffic"}
	}
	return models.TrafficSample{
		TypicalSeconds: *leg.Duration.Value,
		LiveSeconds:    *leg.DurationInTraffic.Value,
	}, nil
}

func classifyTransport(err error) error {
	if isTimeout(err) {
		return &directions.Error{Kind: directions.KindTimeout, Err: errors.Wrap(err, "do request")}
	}
	return &directions.Error{Kind: directions.KindTransport, Err: errors.Wrap(err, "do request")}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
