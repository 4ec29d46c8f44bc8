// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wrap

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
)

// httpTimeout bounds every request the registry/cache layers make.
const httpTimeout = 30 * time.Second

// HTTPClient is the production implementation of registry.HTTPClient,
// satisfying both that interface and cache.Fetcher's HTTP field with a
// single net/http.Client.
type HTTPClient struct {
	Client *http.Client
}

// NewHTTPClient returns an HTTPClient with the package's standard
// per-request timeout.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{Client: &http.Client{Timeout: httpTimeout}}
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetBytes performs a plain GET, failing on any non-2xx status.
func (c *HTTPClient) GetBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	return ioutil.ReadAll(resp.Body)
}

// GetBytesIfNoneMatch performs a conditional GET using etag, reporting a
// 304 response as notModified.
func (c *HTTPClient) GetBytesIfNoneMatch(ctx context.Context, url, etag string) (body []byte, newETag string, notModified bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", false, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, "", false, errors.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, resp.Header.Get("ETag"), true, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, "", false, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}

	body, err = ioutil.ReadAll(resp.Body)
	return body, resp.Header.Get("ETag"), false, err
}

// HeadETag performs a conditional HEAD using etag, reporting a 304
// response as notModified.
func (c *HTTPClient) HeadETag(ctx context.Context, url, etag string) (newETag string, notModified bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return "", false, err
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.do(req)
	if err != nil {
		return "", false, errors.Wrapf(err, "HEAD %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return resp.Header.Get("ETag"), true, nil
	}
	if resp.StatusCode/100 != 2 {
		return "", false, fmt.Errorf("HEAD %s: unexpected status %s", url, resp.Status)
	}
	return resp.Header.Get("ETag"), false, nil
}

// DownloadToFile streams url's body directly to destPath, the form both
// the registry index fetch and the package archive fetch use so neither
// ever holds a whole response in memory.
func (c *HTTPClient) DownloadToFile(ctx context.Context, url, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", destPath)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return errors.Wrapf(err, "writing %s", destPath)
	}
	return nil
}
