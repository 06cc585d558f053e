// Package apiclient talks to the REST API on behalf of the onboarding wizard.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/studentpakistan/backend/core"
	"github.com/studentpakistan/backend/core/onboarding"
	"github.com/studentpakistan/backend/core/reference"
	"github.com/studentpakistan/backend/core/school"
)

const defaultTimeout = 30 * time.Second

var ErrUnauthorized = errors.New("session expired, please log in again")

// APIError is an error response of the API. Fields holds the per-field messages of a validation failure.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	if len(e.Fields) > 0 {
		return fmt.Sprintf("api error %d: invalid fields", e.Status)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  core.Logger

	mu    sync.RWMutex
	token string
}

var (
	_ onboarding.Submitter = (*Client)(nil)
	_ onboarding.Lookup    = (*Client)(nil)
)

func New(baseURL, token string, logger core.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  logger,
		token:   token,
	}
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Submit posts the payload of a completed wizard.
func (c *Client) Submit(ctx context.Context, p onboarding.Payload) error {
	body, err := p.Body()
	if err != nil {
		return errors.Wrap(err, "reading payload")
	}
	return c.do(ctx, http.MethodPost, p.Path, p.ContentType(), body, nil)
}

// Login exchanges credentials for a token, kept for the next requests.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	data, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return "", err
	}
	var res struct {
		Token string `json:"token"`
	}
	if err = c.do(ctx, http.MethodPost, "/api/auth/login", onboarding.ContentTypeJSON, bytes.NewReader(data), &res); err != nil {
		return "", err
	}
	c.SetToken(res.Token)
	return res.Token, nil
}

func (c *Client) CheckUsername(ctx context.Context, username string) (bool, error) {
	var res struct {
		Available bool `json:"available"`
	}
	path := "/api/onboarding/check-username/" + url.PathEscape(username)
	if err := c.get(ctx, path, nil, &res); err != nil {
		return false, err
	}
	return res.Available, nil
}

func (c *Client) SearchSchools(ctx context.Context, query, city string) ([]school.School, error) {
	q := url.Values{"query": {query}}
	if city != "" {
		q.Set("city", city)
	}
	var res struct {
		Schools []school.School `json:"schools"`
	}
	if err := c.get(ctx, "/api/onboarding/schools/search", q, &res); err != nil {
		return nil, err
	}
	return res.Schools, nil
}

// Boards lists the boards of an education type. Failures are logged and give an empty list.
func (c *Client) Boards(ctx context.Context, educationType string) []reference.Board {
	q := url.Values{}
	if educationType != "" {
		q.Set("type", educationType)
	}
	var res struct {
		Boards []reference.Board `json:"boards"`
	}
	if err := c.get(ctx, "/api/onboarding/boards", q, &res); err != nil {
		c.logger.Warn("fetching boards", err)
		return []reference.Board{}
	}
	return res.Boards
}

// Subjects lists the subjects of a board. Failures are logged and give an empty list.
func (c *Client) Subjects(ctx context.Context, boardID, educationType string) []reference.Subject {
	q := url.Values{"boardId": {boardID}, "educationType": {educationType}}
	var res struct {
		Subjects []reference.Subject `json:"subjects"`
	}
	if err := c.get(ctx, "/api/onboarding/subjects", q, &res); err != nil {
		c.logger.Warn("fetching subjects", err)
		return []reference.Subject{}
	}
	return res.Subjects
}

// GradeLevels lists the grade levels of an education type. Failures are logged and give an empty list.
func (c *Client) GradeLevels(ctx context.Context, educationType string) []reference.GradeLevel {
	var res struct {
		GradeLevels []reference.GradeLevel `json:"gradeLevels"`
	}
	if err := c.get(ctx, "/api/boards/grade-levels/"+url.PathEscape(educationType), nil, &res); err != nil {
		c.logger.Warn("fetching grade levels", err)
		return []reference.GradeLevel{}
	}
	return res.GradeLevels
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, path, "", nil, out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", onboarding.ContentTypeJSON)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer res.Body.Close()
	data, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		c.SetToken("")
		return ErrUnauthorized
	case res.StatusCode >= http.StatusBadRequest:
		return decodeError(res.StatusCode, data)
	case out == nil || len(data) == 0:
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, out), "decoding response")
}

// decodeError reads `{"error": msg}` bodies, and `{field: msg}` bodies of validation failures.
func decodeError(status int, data []byte) error {
	apiErr := &APIError{Status: status}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	for k, v := range fields {
		msg, ok := v.(string)
		if !ok {
			msg = fmt.Sprint(v)
		}
		if k == "error" || k == "message" {
			apiErr.Message = msg
			continue
		}
		if apiErr.Fields == nil {
			apiErr.Fields = make(map[string]string)
		}
		apiErr.Fields[k] = msg
	}
	return apiErr
}
