// Package smm places paid engagement orders with an SMM panel.
package smm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bryan-buckman/newsreel/internal/model"
)

const defaultTimeout = 30 * time.Second

// Service is a panel service id and the quantity ordered per video.
type Service struct {
	ID       int
	Quantity int
}

// Services maps each order type to its panel service. The comments quantity
// is ignored; it always equals the number of reply texts.
type Services map[model.OrderType]Service

// DefaultServices are the panel services used when none are configured.
func DefaultServices() Services {
	return Services{
		model.OrderViews:    {ID: 200, Quantity: 500},
		model.OrderLikes:    {ID: 1217, Quantity: 15},
		model.OrderPinLikes: {ID: 115, Quantity: 15},
		model.OrderComments: {ID: 1117},
	}
}

// OrderError reports a failed order placement.
type OrderError struct {
	Type  model.OrderType
	Cause error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("smm order %s: %v", e.Type, e.Cause)
}

func (e *OrderError) Unwrap() error { return e.Cause }

// Client talks to a panel's v2 API.
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the panel at apiURL.
func NewClient(apiURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiURL:     apiURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Order places one order and returns the panel's order id.
func (c *Client) Order(ctx context.Context, service int, link string, quantity int, extra map[string]string) (string, error) {
	form := url.Values{}
	form.Set("key", c.apiKey)
	form.Set("action", "add")
	form.Set("service", strconv.Itoa(service))
	form.Set("link", link)
	form.Set("quantity", strconv.Itoa(quantity))
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		form.Set(k, extra[k])
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("panel returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return parseOrderResponse(body)
}

// parseOrderResponse accepts {"order": 123} or {"order": "123"}; {"error": "..."}
// is a rejection.
func parseOrderResponse(body []byte) (string, error) {
	var out struct {
		Order json.RawMessage `json:"order"`
		Error string          `json:"error"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("panel rejected order: %s", out.Error)
	}
	id := strings.Trim(strings.TrimSpace(string(out.Order)), `"`)
	if id == "" || id == "null" {
		return "", fmt.Errorf("response has no order id")
	}
	return id, nil
}

// Orderer places a single panel order.
type Orderer interface {
	Order(ctx context.Context, service int, link string, quantity int, extra map[string]string) (string, error)
}

// Bundle is the full engagement package for one published video.
type Bundle struct {
	VideoURL   string
	CommentURL string
	Replies    []string
}

type orderStep struct {
	typ   model.OrderType
	link  string
	qty   int
	extra map[string]string
}

// PlaceBundle orders views and likes on the video, likes on the pinned comment,
// then reply comments when there are any. It returns the ids placed so far
// alongside any error.
func PlaceBundle(ctx context.Context, o Orderer, services Services, b Bundle) (map[model.OrderType]string, error) {
	ids := make(map[model.OrderType]string, 4)
	steps := []orderStep{
		{typ: model.OrderViews, link: b.VideoURL},
		{typ: model.OrderLikes, link: b.VideoURL},
		{typ: model.OrderPinLikes, link: b.CommentURL},
	}
	if len(b.Replies) > 0 {
		steps = append(steps, orderStep{
			typ:   model.OrderComments,
			link:  b.CommentURL,
			qty:   len(b.Replies),
			extra: map[string]string{"comments": strings.Join(b.Replies, "\n")},
		})
	}

	for _, step := range steps {
		svc, ok := services[step.typ]
		if !ok {
			return ids, &OrderError{Type: step.typ, Cause: fmt.Errorf("no service configured")}
		}
		qty := step.qty
		if qty == 0 {
			qty = svc.Quantity
		}
		id, err := o.Order(ctx, svc.ID, step.link, qty, step.extra)
		if err != nil {
			return ids, &OrderError{Type: step.typ, Cause: err}
		}
		ids[step.typ] = id
	}
	return ids, nil
}
