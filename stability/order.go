// Package stability provides an orders client hardened with stability patterns.
package stability

// Item is a single line of an order.
type Item struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Order is a customer order as served by the orders endpoint.
//
// Field names follow the upstream JSON contract:
//
//	{"id":1,"items":[{"id":1,"name":"pizza","quantity":1}],"userId":1}
type Order struct {
	ID     int64  `json:"id"`
	Items  []Item `json:"items"`
	UserID int64  `json:"userId"`
}
