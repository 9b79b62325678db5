package cluster

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
)

// ReplicaPath is the URL prefix of the replica endpoints every node serves.
const ReplicaPath = "/cache/replica/"

// maxValueBytes bounds how much of a replica GET response is read.
const maxValueBytes = 32 << 20

// HTTPTransport reaches peers over their replica endpoints. Peer ids are
// base URLs such as "http://10.0.0.2:8080".
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport returns a transport using client, or a fresh client with
// the given timeout when client is nil. The router also puts a deadline on
// every call's context; the client timeout is a second line.
func NewHTTPTransport(client *http.Client, timeout time.Duration) *HTTPTransport {
	if client == nil {
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPTransport{client: client}
}

// Put issues POST {peer}/cache/replica/{key}?value=…[&ttl=ms].
func (t *HTTPTransport) Put(ctx context.Context, peer, key, value string, ttl time.Duration) error {
	q := url.Values{"value": {value}}
	if ttl > 0 {
		q.Set("ttl", strconv.FormatInt(ttl.Milliseconds(), 10))
	}
	resp, err := t.do(ctx, http.MethodPost, replicaURL(peer, key, q))
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return unexpectedStatus(resp)
	}
	return nil
}

// Get issues GET {peer}/cache/replica/{key}; 404 means absent.
func (t *HTTPTransport) Get(ctx context.Context, peer, key string) (string, bool, error) {
	resp, err := t.do(ctx, http.MethodGet, replicaURL(peer, key, nil))
	if err != nil {
		return "", false, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxValueBytes))
		if err != nil {
			return "", false, errors.Wrap(err, errors.CodeNetwork, "read replica value")
		}
		return string(b), true, nil
	case http.StatusNotFound:
		return "", false, nil
	default:
		return "", false, unexpectedStatus(resp)
	}
}

// Delete issues DELETE {peer}/cache/replica/{key}; 404 means nothing was removed.
func (t *HTTPTransport) Delete(ctx context.Context, peer, key string) (bool, error) {
	resp, err := t.do(ctx, http.MethodDelete, replicaURL(peer, key, nil))
	if err != nil {
		return false, err
	}
	defer drain(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, unexpectedStatus(resp)
	}
}

func (t *HTTPTransport) do(ctx context.Context, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "build replica request")
	}
	resp, err := t.client.Do(req)
	if err != nil {
		// ctx errors surface wrapped in *url.Error; peerError classifies them.
		return nil, err
	}
	return resp, nil
}

func replicaURL(peer, key string, q url.Values) string {
	u := strings.TrimRight(peer, "/") + ReplicaPath + url.PathEscape(key)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func unexpectedStatus(resp *http.Response) error {
	return errors.WithContext(
		errors.Newf(errors.CodeUnavailable, "peer answered %s", resp.Status),
		"status", resp.StatusCode)
}

// drain lets the connection be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

var _ Transport = (*HTTPTransport)(nil)
