// Package client talks to the booking API and keeps the login in a
// session.Store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-booking-auth"
	"github.com/goliatone/go-booking-auth/session"
)

// DefaultTimeout bounds each request when no http.Client is supplied.
const DefaultTimeout = 15 * time.Second

// APIError is a non 2xx response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s", e.Status, body)
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger auth.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client calls the booking API.
type Client struct {
	baseURL string
	http    *http.Client
	store   *session.Store
	logger  auth.Logger
}

// New returns a client for baseURL. A nil store gets an in-memory one.
func New(baseURL string, store *session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		store:   store,
		logger:  auth.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = session.New(session.WithLogger(c.logger))
	}
	return c
}

// Session returns the store holding the login.
func (c *Client) Session() *session.Store {
	return c.store
}

// NewAuthenticatedRequest builds a JSON request and attaches the bearer
// token when logged in.
func (c *Client) NewAuthenticatedRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}

	if header := c.store.AuthorizationHeader(); header != "" {
		req.Header.Set("Authorization", header)
	} else {
		c.logger.Debug("no token available, sending request without authorization", "path", path)
	}

	return req, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out. A 401 on a request that
// carried a token logs the session out.
func (c *Client) do(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "request failed").
			WithMetadata(map[string]any{"path": req.URL.Path})
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "read response")
	}

	if res.StatusCode == http.StatusUnauthorized {
		if req.Header.Get("Authorization") != "" && c.store.IsLoggedIn() {
			c.logger.Info("token rejected by api, logging out", "path", req.URL.Path)
			if lerr := c.store.Logout(req.Context()); lerr != nil {
				c.logger.Warn("logout after rejected token failed", "error", lerr)
			}
		}
		return auth.WrapKind(auth.ErrUnauthorized, &APIError{Status: res.StatusCode, Body: string(data)})
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &APIError{Status: res.StatusCode, Body: string(data)}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "decode response")
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := c.NewAuthenticatedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

// Register creates an account and returns its id.
func (c *Client) Register(ctx context.Context, name, email, password string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/User/register", auth.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return "", err
	}

	var res struct {
		Message string `json:"message"`
		ID      string `json:"id"`
	}
	if err := c.do(req, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

// Login exchanges credentials for a token and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/User/login", auth.LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return "", err
	}

	var res auth.LoginResponse
	if err := c.do(req, &res); err != nil {
		return "", err
	}

	if err := c.store.Login(ctx, res.Token); err != nil {
		return "", err
	}
	return res.Token, nil
}

// Logout forgets the stored token.
func (c *Client) Logout(ctx context.Context) error {
	return c.store.Logout(ctx)
}

func (c *Client) Users(ctx context.Context) ([]*auth.User, error) {
	var users []*auth.User
	if err := c.get(ctx, "/User", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// SearchUsers pages through users. Zero values keep the server defaults.
func (c *Client) SearchUsers(ctx context.Context, q auth.UserQuery) (*auth.UserPage, error) {
	values := url.Values{}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(q.PageSize))
	}
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.IncludeBookings {
		values.Set("includeBookings", "true")
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.SortBy != "" {
		values.Set("sortBy", q.SortBy)
	}
	values.Set("ascending", strconv.FormatBool(q.Ascending))

	page := &auth.UserPage{}
	if err := c.get(ctx, "/User/search?"+values.Encode(), page); err != nil {
		return nil, err
	}
	return page, nil
}

// Me returns the user the token belongs to.
func (c *Client) Me(ctx context.Context) (*auth.User, error) {
	user := &auth.User{}
	if err := c.get(ctx, "/User/me", user); err != nil {
		return nil, err
	}
	return user, nil
}

func (c *Client) Rooms(ctx context.Context) ([]*auth.Room, error) {
	var rooms []*auth.Room
	if err := c.get(ctx, "/Room", &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *Client) CreateBooking(ctx context.Context, in auth.BookingRequest) (*auth.Booking, error) {
	req, err := c.NewAuthenticatedRequest(ctx, http.MethodPost, "/Booking", in)
	if err != nil {
		return nil, err
	}

	booking := &auth.Booking{}
	if err := c.do(req, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (c *Client) Bookings(ctx context.Context) ([]*auth.Booking, error) {
	var bookings []*auth.Booking
	if err := c.get(ctx, "/Booking", &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (c *Client) Ping(ctx context.Context) (*auth.StatusResponse, error) {
	status := &auth.StatusResponse{}
	if err := c.get(ctx, "/api/Status/ping", status); err != nil {
		return nil, err
	}
	return status, nil
}
