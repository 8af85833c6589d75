package cart

import (
	"github.com/shopspring/decimal"
)

// MaxLineQuantity bounds a single line. Larger requests are clamped.
const MaxLineQuantity = 1000

func clampQty(q int) int {
	return min(q, MaxLineQuantity)
}

// Line is one product in the cart. Name and UnitPrice are captured when the
// product is first added and are not refreshed afterwards.
type Line struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart keeps at most one line per product, in the order products were first
// added. The zero value is an empty cart.
type Cart struct {
	Items []Line `json:"items"`
}

func (c *Cart) index(productID uint) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add increments an existing line or appends a new one. A non-positive qty
// counts as one, and a line never exceeds MaxLineQuantity.
func (c *Cart) Add(productID uint, name string, unitPrice decimal.Decimal, qty int) {
	if qty <= 0 {
		qty = 1
	}
	qty = clampQty(qty)
	if i := c.index(productID); i >= 0 {
		c.Items[i].Quantity = clampQty(c.Items[i].Quantity + qty)
		return
	}
	c.Items = append(c.Items, Line{ProductID: productID, Name: name, UnitPrice: unitPrice, Quantity: qty})
}

// UpdateQuantity sets the quantity of an existing line; qty <= 0 removes it.
// Unknown products are ignored.
func (c *Cart) UpdateQuantity(productID uint, qty int) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	if qty <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return
	}
	c.Items[i].Quantity = clampQty(qty)
}

func (c *Cart) Remove(productID uint) {
	c.UpdateQuantity(productID, 0)
}

func (c *Cart) Clear() {
	c.Items = nil
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Items {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c *Cart) Line(productID uint) (Line, bool) {
	if i := c.index(productID); i >= 0 {
		return c.Items[i], true
	}
	return Line{}, false
}

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

func (c *Cart) Count() int {
	n := 0
	for _, l := range c.Items {
		n += l.Quantity
	}
	return n
}

// ProductIDs returns the distinct product ids in line order.
func (c *Cart) ProductIDs() []uint {
	ids := make([]uint, 0, len(c.Items))
	for _, l := range c.Items {
		ids = append(ids, l.ProductID)
	}
	return ids
}

func (c *Cart) Clone() *Cart {
	out := &Cart{}
	if len(c.Items) > 0 {
		out.Items = append([]Line(nil), c.Items...)
	}
	return out
}
