package model

import "time"

// Order is the order-centric root every subsystem mutates around.
// Status is a derived projection: only the workflow service writes it.
type Order struct {
	ID        string      `json:"id"`
	PONumber  string      `json:"po_number,omitempty"`
	Status    OrderStatus `json:"status"`
	Method    Method      `json:"method"`
	BrandID   string      `json:"brand_id,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
	TotalQty  int         `json:"total_qty,omitempty"`
	DueDate   time.Time   `json:"due_date"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
