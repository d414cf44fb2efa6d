/*
 * iptv-stream-extractor turns bulk playlist dumps into a single validated,
 * organized IPTV playlist.
 * Copyright (C) 2025  Angelo Azevedo
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

// Package xtream queries Xtream-Codes panels for account metadata.
// The only field the pipeline needs is the subscription expiry date,
// fetched from player_api.php once per credential set.
package xtream

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"github.com/ang3lo-azevedo/iptv-stream-extractor/pkg/utils"
)

// Credentials identify one account on one panel.
type Credentials struct {
	Base     string // scheme://host[:port]
	Username string
	Password string
}

// Key is the cache key: one lookup per panel account, not per stream.
func (c Credentials) Key() string {
	return c.Base + "|" + c.Username + "|" + c.Password
}

func (c Credentials) playerAPIURL() string {
	return fmt.Sprintf("%s/player_api.php?username=%s&password=%s",
		c.Base, url.QueryEscape(c.Username), url.QueryEscape(c.Password))
}

// ParseCredentials extracts panel credentials from a playlist URL.
// Both common shapes are handled: get.php query parameters and the
// /username/password/ path form used by raw stream links.
func ParseCredentials(raw string) (Credentials, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Credentials{}, false
	}
	creds := Credentials{Base: u.Scheme + "://" + u.Host}

	q := u.Query()
	if user, pass := q.Get("username"), q.Get("password"); user != "" && pass != "" {
		creds.Username = user
		creds.Password = pass
		return creds, true
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) >= 3 {
		// live/user/pass/id and user/pass/id both put credentials just
		// before the stream id.
		if parts[0] == "live" || parts[0] == "movie" || parts[0] == "series" {
			parts = parts[1:]
		}
		if len(parts) >= 3 {
			creds.Username = parts[0]
			creds.Password = parts[1]
			return creds, true
		}
	}
	return Credentials{}, false
}

type cacheEntry struct {
	expiry *time.Time
}

// Resolver fetches and caches subscription expiry dates. Concurrent
// lookups for the same account collapse into a single panel request.
type Resolver struct {
	client *http.Client
	cache  *xsync.MapOf[string, cacheEntry]
	group  singleflight.Group
}

// NewResolver creates a resolver with the given per-request timeout.
// Panels routinely serve self-signed certificates, so verification is
// skipped the same way set-top players do.
func NewResolver(timeout time.Duration) *Resolver {
	return &Resolver{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		cache: xsync.NewMapOf[string, cacheEntry](),
	}
}

// Expiry returns the account's expiry date, or nil when the panel does
// not expose one. Failures are cached negatively: a panel that refused
// or garbled one lookup is not asked again during the run.
func (r *Resolver) Expiry(ctx context.Context, creds Credentials) *time.Time {
	key := creds.Key()
	if entry, ok := r.cache.Load(key); ok {
		return entry.expiry
	}

	v, _, _ := r.group.Do(key, func() (interface{}, error) {
		if entry, ok := r.cache.Load(key); ok {
			return entry.expiry, nil
		}
		expiry := r.fetch(ctx, creds)
		r.cache.Store(key, cacheEntry{expiry: expiry})
		return expiry, nil
	})
	expiry, _ := v.(*time.Time)
	return expiry
}

func (r *Resolver) fetch(ctx context.Context, creds Credentials) *time.Time {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, creds.playerAPIURL(), nil)
	if err != nil {
		utils.DebugLog("Building player_api request for %s: %v", utils.MaskURL(creds.Base), err)
		return nil
	}
	req.Header.Set("User-Agent", utils.GetIPTVUserAgent())

	resp, err := r.client.Do(req)
	if err != nil {
		utils.DebugLog("player_api request to %s failed: %v", utils.MaskURL(creds.Base), err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		utils.DebugLog("player_api on %s returned status %d", utils.MaskURL(creds.Base), resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}
	return parseExpiry(body)
}

// parseExpiry pulls user_info.exp_date out of a player_api response.
// Panels send it as a unix epoch number, an epoch string, a formatted
// date string, or null for unlimited accounts.
func parseExpiry(body []byte) *time.Time {
	value, dataType, _, err := jsonparser.Get(body, "user_info", "exp_date")
	if err != nil || dataType == jsonparser.Null {
		return nil
	}

	raw := strings.Trim(string(value), `"`)
	if raw == "" || raw == "null" {
		return nil
	}

	if epoch, err := strconv.ParseInt(raw, 10, 64); err == nil && epoch > 0 {
		t := time.Unix(epoch, 0).UTC()
		return &t
	}

	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	utils.DebugLog("Unrecognized exp_date value: %q", raw)
	return nil
}
