package catalog

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-vat/internal/tax"
)

// CartEntry is one requested product with a quantity.
type CartEntry struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"gte=0"`
}

// Expander turns cart entries into taxable line items. Bundles expand into
// one line item per member with the container id attached, so downstream
// resolution can substitute the container where the display mode requires it.
type Expander struct {
	Products Store
}

// Expand resolves every cart entry against the catalog. Quantities multiply
// the line price; a zero quantity defaults to one.
func (e Expander) Expand(ctx context.Context, entries []CartEntry) ([]tax.LineItem, []Product, error) {
	items := make([]tax.LineItem, 0, len(entries))
	products := make([]Product, 0, len(entries))
	for _, entry := range entries {
		product, err := e.Products.GetProduct(ctx, entry.ProductID)
		if err != nil {
			return nil, nil, err
		}
		qty := entry.Quantity
		if qty <= 0 {
			qty = 1
		}
		quantity := decimal.NewFromInt(int64(qty))

		if !product.IsBundle() {
			items = append(items, tax.LineItem{
				ProductID: product.ID,
				Price:     product.Price.Mul(quantity),
			})
			products = append(products, product)
			continue
		}
		for _, memberID := range product.BundleItems {
			member, err := e.Products.GetProduct(ctx, memberID)
			if err != nil {
				return nil, nil, err
			}
			items = append(items, tax.LineItem{
				ProductID: member.ID,
				ParentID:  product.ID,
				Price:     member.Price.Mul(quantity),
			})
			products = append(products, member)
		}
	}
	return items, products, nil
}
