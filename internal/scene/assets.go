/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package scene

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// AssetLoader resolves an image source (data URL or remote URL) to a bitmap.
type AssetLoader interface {
	Load(ctx context.Context, src string) (image.Image, error)
}

// maxAssetBytes caps remote downloads.
const maxAssetBytes = 32 << 20

// HTTPAssets decodes data URLs in place and fetches http(s) sources.
type HTTPAssets struct {
	Client *http.Client
}

// DefaultAssets is the loader canvases use when none is configured.
var DefaultAssets AssetLoader = HTTPAssets{Client: &http.Client{Timeout: 20 * time.Second}}

func (a HTTPAssets) Load(ctx context.Context, src string) (image.Image, error) {
	if IsDataURL(src) {
		_, data, err := DecodeDataURL(src)
		if err != nil {
			return nil, err
		}
		return DecodeImage(data)
	}
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("unsupported image source %q", truncate(src, 64))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	cli := a.Client
	if cli == nil {
		cli = http.DefaultClient
	}
	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch image %s: %s", u.Redacted(), resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return DecodeImage(data)
}

// DecodeImage decodes any registered raster format.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.New("decode image: empty bitmap")
	}
	return img, nil
}

// IsDataURL reports whether src is an inline-encoded (self-contained) source.
func IsDataURL(src string) bool { return strings.HasPrefix(src, "data:") }

// EncodeDataURL returns a base64 data URL.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL splits a data URL into its media type and payload.
func DecodeDataURL(s string) (string, []byte, error) {
	if !IsDataURL(s) {
		return "", nil, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return "", nil, errors.New("malformed data URL")
	}
	mime := meta
	isB64 := false
	if m, ok := strings.CutSuffix(meta, ";base64"); ok {
		mime, isB64 = m, true
	}
	if !isB64 {
		dec, err := url.PathUnescape(payload)
		if err != nil {
			return "", nil, fmt.Errorf("malformed data URL: %w", err)
		}
		return mime, []byte(dec), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(payload); err != nil {
			return "", nil, fmt.Errorf("malformed data URL: %w", err)
		}
	}
	return mime, data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
