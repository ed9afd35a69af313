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
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Car is one catalog entry as served by GET /cars.
type Car struct {
	ID          int64           `json:"id"`
	Make        string          `json:"make"`
	Model       string          `json:"model"`
	Year        int             `json:"year"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
}

// CartItem is one line of the server cart.
type CartItem struct {
	CarID    int64 `json:"car_id"`
	Quantity int   `json:"quantity"`
}

// Cart is the body of GET and DELETE /cart.
type Cart struct {
	SessionID string     `json:"session_id"`
	Items     []CartItem `json:"items"`
}

// AddItemRequest is the body of POST /cart.
type AddItemRequest struct {
	CarID    int64 `json:"car_id"`
	Quantity int   `json:"quantity"`
}

// CheckoutRequest is the body of POST /checkout.
type CheckoutRequest struct {
	SessionID     string `json:"session_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
}

// CheckoutResponse is the 2xx body of POST /checkout.
type CheckoutResponse struct {
	OrderID OrderID `json:"order_id"`
	Status  string  `json:"status,omitempty"`
}

// OrderID is an opaque order identifier. Servers send it as either a JSON
// number or a string.
type OrderID string

// UnmarshalJSON accepts 42, "42" and "ord_42".
func (id *OrderID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = OrderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("order_id: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("order_id: %w", err)
	}
	*id = OrderID(n.String())
	return nil
}

// OrderRecord is the order header returned by GET /orders/{id}.
type OrderRecord struct {
	ID            int64           `json:"id"`
	Total         decimal.Decimal `json:"total"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CreatedAt     string          `json:"created_at,omitempty"`
}

// OrderLine is one priced line of a placed order.
type OrderLine struct {
	CarID    int64           `json:"car_id"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// OrderDetail is the body of GET /orders/{id}.
type OrderDetail struct {
	Order OrderRecord `json:"order"`
	Items []OrderLine `json:"items"`
}
