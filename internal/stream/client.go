package stream

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// streamEndpoint is the backend's chat streaming path.
const streamEndpoint = "/api/chat/stream"

// chatRequest is the JSON body of a stream request.
type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Client opens streaming connections against the assistant backend.
type Client struct {
	http *resty.Client
}

// NewClient builds a client for the given base URL. connectTimeout bounds
// connection establishment only; the response body stays open for as long
// as the backend streams.
func NewClient(baseURL string, connectTimeout time.Duration) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
	}

	c := resty.New().
		SetBaseURL(baseURL).
		SetTransport(transport).
		SetDoNotParseResponse(true)

	return &Client{http: c}
}

// OpenStream POSTs a chat message and returns the raw response body for
// the decoder. The caller owns the returned reader and must close it.
func (c *Client) OpenStream(ctx context.Context, sessionID, message string) (io.ReadCloser, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetBody(chatRequest{SessionID: sessionID, Message: message}).
		Post(streamEndpoint)
	if err != nil {
		return nil, err
	}

	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		if body != nil {
			body.Close()
		}
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode())
	}
	if body == nil {
		return nil, fmt.Errorf("empty response body")
	}
	return body, nil
}
