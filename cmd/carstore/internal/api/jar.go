// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/jinterlante1206/carstore/pkg/logging"
)

// CookieStore is durable key/value storage for cookies.
type CookieStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PersistentJar is an http.CookieJar whose cookies for the API host
// survive process restarts, so one-shot commands share a session.
//
// # Description
//
// Cookie policy is delegated to net/http/cookiejar. After every
// SetCookies the name/value pairs the jar would send back to that host are
// written to the store under "cookies/{host}". Restored cookies are scoped
// to path "/" and carry no expiry.
//
// # Thread Safety
//
// Safe for concurrent use.
type PersistentJar struct {
	mu     sync.Mutex
	jar    *cookiejar.Jar
	store  CookieStore
	logger *logging.Logger
}

// NewPersistentJar creates a jar and loads any cookies saved for base.
//
// # Inputs
//
//   - ctx: Bounds the initial load.
//   - store: Durable storage. Required.
//   - base: The API base URL; only its host is used.
//   - logger: May be nil.
//
// # Outputs
//
//   - *PersistentJar: The jar, pre-populated.
//   - error: Non-nil if the store read fails or the saved value is corrupt.
func NewPersistentJar(ctx context.Context, store CookieStore, base string, logger *logging.Logger) (*PersistentJar, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	pj := &PersistentJar{jar: jar, store: store, logger: logger.With("component", "cookiejar")}

	raw, ok, err := store.Get(ctx, cookieKey(u))
	if err != nil {
		return nil, fmt.Errorf("load cookies: %w", err)
	}
	if !ok {
		return pj, nil
	}

	var saved []storedCookie
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		return nil, fmt.Errorf("decode saved cookies: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(saved))
	for _, sc := range saved {
		cookies = append(cookies, &http.Cookie{Name: sc.Name, Value: sc.Value, Path: "/"})
	}
	root := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
	jar.SetCookies(root, cookies)
	return pj, nil
}

// SetCookies stores cookies received from u and persists the host's
// cookie set. Persistence failures are logged.
func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	current := j.jar.Cookies(u)
	saved := make([]storedCookie, 0, len(current))
	for _, c := range current {
		saved = append(saved, storedCookie{Name: c.Name, Value: c.Value})
	}
	raw, err := json.Marshal(saved)
	if err != nil {
		j.logger.Warn("encode cookies failed", "error", err)
		return
	}
	if err := j.store.Put(context.Background(), cookieKey(u), string(raw)); err != nil {
		j.logger.Warn("persist cookies failed", "host", u.Host, "error", err)
	}
}

// Cookies returns the cookies to send to u.
func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Cookie returns the value of the named cookie for base, if set.
func (j *PersistentJar) Cookie(base, name string) (string, bool) {
	u, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	for _, c := range j.Cookies(u) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

func cookieKey(u *url.URL) string {
	return "cookies/" + u.Host
}

var _ http.CookieJar = (*PersistentJar)(nil)
