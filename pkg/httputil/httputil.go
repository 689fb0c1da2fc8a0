package httputil

import (
	"io/ioutil"
	"net/http"
	"strings"
	"time"
)

// Client is a thin wrapper over http.Client returning status and body as a
// string, which is what the JSON probing done by callers wants.
type Client struct {
	inner *http.Client
}

// NewClient returns a client with the given request deadline.
func NewClient(timeout time.Duration) *Client {
	return &Client{inner: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *Client) Get(url string, header map[string]string) (int, string, error) {
	return c.do("GET", url, "", header)
}

// Post performs a POST request with the given body.
func (c *Client) Post(url, body string, header map[string]string) (int, string, error) {
	return c.do("POST", url, body, header)
}

func (c *Client) do(method, url, bodyString string, header map[string]string) (int, string, error) {
	var req *http.Request
	var err error
	if bodyString != "" {
		req, err = http.NewRequest(method, url, strings.NewReader(bodyString))
	} else {
		req, err = http.NewRequest(method, url, nil)
	}
	if err != nil {
		return 0, "", err
	}
	if bodyString != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range header {
		req.Header.Set(key, value)
	}

	rs, err := c.inner.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer rs.Body.Close()

	bodyBytes, err := ioutil.ReadAll(rs.Body)
	if err != nil {
		return 0, "", err
	}
	return rs.StatusCode, string(bodyBytes), nil
}
