package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductRef references a catalog product
type ProductRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ClientRef references the client that placed the sales order
type ClientRef struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName joins the contact's first and last name
func (c ClientRef) DisplayName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// MaterialRequirement is a raw-material lot reserved for an order
type MaterialRequirement struct {
	MaterialID int64           `json:"material_id"`
	LotID      int64           `json:"lot_id"`
	LotCode    string          `json:"lot_code"`
	Name       string          `json:"name"`
	Quantity   decimal.Decimal `json:"quantity"`
	Unit       string          `json:"unit"`
}

// AcceptedOrder is a production order accepted into production and assigned
// to a line, not yet consumed by any batch
type AcceptedOrder struct {
	ID                OrderID               `json:"id"`
	SalesOrderID      int64                 `json:"sales_order_id"`
	LineID            LineID                `json:"line_id"`
	Product           ProductRef            `json:"product"`
	Client            ClientRef             `json:"client"`
	Units             int64                 `json:"units"`
	Weight            decimal.Decimal       `json:"weight_kg"`
	CreatedAt         time.Time             `json:"created_at"`
	RequestedDelivery time.Time             `json:"requested_delivery"`
	Materials         []MaterialRequirement `json:"materials"`
}

// NewAcceptedOrder creates a validated AcceptedOrder. The weight is coerced,
// so a negative weight is stored as zero.
func NewAcceptedOrder(
	id OrderID,
	lineID LineID,
	product ProductRef,
	weight decimal.Decimal,
	requestedDelivery time.Time,
) (*AcceptedOrder, error) {
	if id <= 0 {
		return nil, fmt.Errorf("order id must be positive, got %d", id)
	}
	if lineID <= 0 {
		return nil, fmt.Errorf("line id must be positive, got %d", lineID)
	}

	return &AcceptedOrder{
		ID:                id,
		LineID:            lineID,
		Product:           product,
		Weight:            CoerceKilograms(weight),
		RequestedDelivery: requestedDelivery,
	}, nil
}
