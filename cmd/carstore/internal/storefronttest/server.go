// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storefronttest runs an in-process storefront backend for tests.
//
// # Description
//
// The server models the storefront REST contract closely enough to
// exercise every client flow:
//
//   - /api/cart keys carts by a "session_id" cookie set on every response
//     and accumulates quantities for a car already in the cart
//   - /api/checkout prices the cart, assigns sequential order ids and
//     deletes the cart
//   - /api/status/{redis,rabbit,orders} report the legacy health bodies
//   - /api/service/{redis,rabbit,postgres}/{start,stop,status} flip the
//     simulated health and return a timestamped {"log": ...}
//
// Failure injection (FailNext), call counting (Calls) and a gate that
// holds control actions (HoldActions) let tests drive edge cases.
package storefronttest

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jinterlante1206/carstore/cmd/carstore/internal/api"
)

const sessionCookie = "session_id"

// controlToStatus maps control path names onto status path names.
var controlToStatus = map[string]string{
	"redis":    "redis",
	"rabbit":   "rabbit",
	"postgres": "orders",
}

// DefaultCars is the catalog served unless SetCars replaces it.
func DefaultCars() []api.Car {
	return []api.Car{
		{ID: 1, Make: "Volvo", Model: "XC60", Year: 2022, Description: "Mid-size SUV", Price: decimal.NewFromInt(45000)},
		{ID: 2, Make: "Audi", Model: "A4", Year: 2021, Price: decimal.RequireFromString("31999.99")},
		{ID: 3, Make: "Tesla", Model: "Model 3", Year: 2023, Price: decimal.NewFromInt(39990)},
	}
}

type injected struct {
	status int
	body   string
}

// Server is the fake storefront.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Server struct {
	srv      *httptest.Server
	validate *validator.Validate

	mu        sync.Mutex
	cars      []api.Car
	carts     map[string][]api.CartItem
	orders    map[int64]api.OrderDetail
	nextOrder int64
	health    map[string]bool
	failures  map[string][]injected
	calls     map[string]int
	gate      chan struct{}
}

// New starts a server and registers its shutdown with t.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		validate:  validator.New(),
		cars:      DefaultCars(),
		carts:     make(map[string][]api.CartItem),
		orders:    make(map[int64]api.OrderDetail),
		nextOrder: 1,
		health:    map[string]bool{"redis": true, "rabbit": true, "orders": true},
		failures:  make(map[string][]injected),
		calls:     make(map[string]int),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.countAndInject)
	g := r.Group("/api")
	g.GET("/cars", s.listCars)
	g.GET("/cart", s.getCart)
	g.POST("/cart", s.addToCart)
	g.DELETE("/cart", s.clearCart)
	g.POST("/checkout", s.checkout)
	g.GET("/orders/:id", s.getOrder)
	g.GET("/status/:service", s.status)
	g.POST("/service/:service/:action", s.control)

	s.srv = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Close releases held actions and shuts the server down.
func (s *Server) Close() {
	s.mu.Lock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
	s.mu.Unlock()
	s.srv.Close()
}

// BaseURL returns the API root, ending in "/api".
func (s *Server) BaseURL() string {
	return s.srv.URL + "/api"
}

// NewJar returns an empty cookie jar for a client of this server.
func (s *Server) NewJar(t testing.TB) http.CookieJar {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return jar
}

// SetCars replaces the catalog.
func (s *Server) SetCars(cars []api.Car) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cars = cars
}

// SetCart replaces a session's cart.
func (s *Server) SetCart(sessionID string, items []api.CartItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[sessionID] = append([]api.CartItem(nil), items...)
}

// Cart returns a copy of a session's cart.
func (s *Server) Cart(sessionID string) []api.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.CartItem(nil), s.carts[sessionID]...)
}

// SetNextOrderID sets the id the next successful checkout receives.
func (s *Server) SetNextOrderID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOrder = id
}

// Order returns a placed order.
func (s *Server) Order(id int64) (api.OrderDetail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

// SetHealthy sets the simulated health of a status path name ("redis",
// "rabbit" or "orders").
func (s *Server) SetHealthy(statusName string, up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health[statusName] = up
}

// Healthy returns the simulated health of a status path name.
func (s *Server) Healthy(statusName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health[statusName]
}

// FailNext makes the next request to path (relative to /api, any method)
// answer status with body instead of being handled. Calls queue.
func (s *Server) FailNext(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], injected{status: status, body: body})
}

// Calls returns how many requests reached method path (relative to /api).
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

// HoldActions makes control actions block until the returned release
// function is called (or the request is cancelled).
func (s *Server) HoldActions() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				close(gate)
				s.gate = nil
			}
			s.mu.Unlock()
		})
	}
}

// =============================================================================
// Middleware
// =============================================================================

func (s *Server) countAndInject(c *gin.Context) {
	path := strings.TrimPrefix(c.Request.URL.Path, "/api")

	s.mu.Lock()
	s.calls[c.Request.Method+" "+path]++
	var inj *injected
	if q := s.failures[path]; len(q) > 0 {
		inj = &q[0]
		s.failures[path] = q[1:]
	}
	s.mu.Unlock()

	if inj != nil {
		c.Data(inj.status, "application/json", []byte(inj.body))
		c.Abort()
		return
	}
	c.Next()
}

// =============================================================================
// Catalog and cart
// =============================================================================

func (s *Server) listCars(c *gin.Context) {
	s.mu.Lock()
	cars := append([]api.Car(nil), s.cars...)
	s.mu.Unlock()
	c.JSON(http.StatusOK, cars)
}

// session returns the request's session id, creating one when the cookie
// is absent, and sets the cookie on the response.
func (s *Server) session(c *gin.Context) string {
	sid, err := c.Cookie(sessionCookie)
	if err != nil || sid == "" {
		sid = uuid.NewString()
	}
	c.SetCookie(sessionCookie, sid, 0, "/", "", false, false)
	return sid
}

func (s *Server) getCart(c *gin.Context) {
	sid := s.session(c)
	items := s.Cart(sid)
	if items == nil {
		items = []api.CartItem{}
	}
	c.JSON(http.StatusOK, api.Cart{SessionID: sid, Items: items})
}

func (s *Server) addToCart(c *gin.Context) {
	sid := s.session(c)
	var req api.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	s.mu.Lock()
	items := s.carts[sid]
	found := false
	for i := range items {
		if items[i].CarID == req.CarID {
			items[i].Quantity += req.Quantity
			found = true
		}
	}
	if !found {
		items = append(items, api.CartItem{CarID: req.CarID, Quantity: req.Quantity})
	}
	s.carts[sid] = items
	snapshot := append([]api.CartItem(nil), items...)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, api.Cart{SessionID: sid, Items: snapshot})
}

func (s *Server) clearCart(c *gin.Context) {
	sid := s.session(c)
	s.mu.Lock()
	delete(s.carts, sid)
	s.mu.Unlock()
	c.JSON(http.StatusOK, api.Cart{SessionID: sid, Items: []api.CartItem{}})
}

// =============================================================================
// Checkout and orders
// =============================================================================

func (s *Server) checkout(c *gin.Context) {
	var req api.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sid := req.SessionID
	if sid == "" {
		sid, _ = c.Cookie(sessionCookie)
	}
	if sid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no session"})
		return
	}
	if req.CustomerEmail != "" {
		if err := s.validate.Var(req.CustomerEmail, "email"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.carts[sid]
	if len(items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cart empty"})
		return
	}

	prices := make(map[int64]decimal.Decimal, len(s.cars))
	for _, car := range s.cars {
		prices[car.ID] = car.Price
	}
	total := decimal.Zero
	lines := make([]api.OrderLine, 0, len(items))
	for _, it := range items {
		price := prices[it.CarID]
		total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		lines = append(lines, api.OrderLine{CarID: it.CarID, Quantity: it.Quantity, Price: price})
	}

	id := s.nextOrder
	s.nextOrder++
	s.orders[id] = api.OrderDetail{
		Order: api.OrderRecord{
			ID:            id,
			Total:         total,
			CustomerName:  req.CustomerName,
			CustomerEmail: req.CustomerEmail,
			CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		},
		Items: lines,
	}
	delete(s.carts, sid)

	c.JSON(http.StatusCreated, gin.H{"order_id": id, "status": "created"})
}

func (s *Server) getOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	o, ok := s.Order(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, o)
}

// =============================================================================
// Status and control
// =============================================================================

func (s *Server) status(c *gin.Context) {
	name := c.Param("service")
	s.mu.Lock()
	up, known := s.health[name]
	var recent []gin.H
	for id, o := range s.orders {
		recent = append(recent, gin.H{"id": id, "total": o.Order.Total, "customer_name": o.Order.CustomerName})
	}
	s.mu.Unlock()

	if !known {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown service " + name})
		return
	}

	switch name {
	case "redis":
		if up {
			c.JSON(http.StatusOK, gin.H{"redis": "OK", "ping": true})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"redis": "DOWN", "error": "Connection refused"})
	case "rabbit":
		if up {
			c.JSON(http.StatusOK, gin.H{"rabbitmq": "OK", "queue": "orders", "messages": 0})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"rabbitmq": "DOWN", "error": "Connection refused"})
	default:
		if up {
			if recent == nil {
				recent = []gin.H{}
			}
			c.JSON(http.StatusOK, gin.H{"orders": recent})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not connect to server"})
	}
}

func (s *Server) control(c *gin.Context) {
	service, action := c.Param("service"), c.Param("action")
	ts := func() string { return time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "Z" }

	statusName, ok := controlToStatus[service]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"log": fmt.Sprintf("[%s] Unknown service: %s", ts(), service)})
		return
	}
	if action != "start" && action != "stop" && action != "status" {
		c.JSON(http.StatusBadRequest, gin.H{"log": fmt.Sprintf("[%s] Unknown action: %s", ts(), action)})
		return
	}

	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-c.Request.Context().Done():
			return
		}
	}

	switch action {
	case "start":
		s.SetHealthy(statusName, true)
		c.JSON(http.StatusOK, gin.H{"log": fmt.Sprintf("[%s] Starting container %s...\n[%s] Container started.", ts(), service, ts())})
	case "stop":
		s.SetHealthy(statusName, false)
		c.JSON(http.StatusOK, gin.H{"log": fmt.Sprintf("[%s] Stopping container %s...\n[%s] Container stopped.", ts(), service, ts())})
	default:
		if !s.Healthy(statusName) {
			c.JSON(http.StatusInternalServerError, gin.H{"log": fmt.Sprintf("[%s] ERROR during status of %s: container not running", ts(), service)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"log": fmt.Sprintf("[%s] Checking %s...\n[%s] %s OK", ts(), service, ts(), service)})
	}
}
