package printful

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/imagine-it/storefront/internal/models"
)

type orderItem struct {
	Source           string      `json:"source"`
	CatalogVariantID int64       `json:"catalog_variant_id"`
	Quantity         int         `json:"quantity"`
	RetailPrice      string      `json:"retail_price,omitempty"`
	Placements       []Placement `json:"placements"`
}

type orderRecipient struct {
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	StateCode   string `json:"state_code,omitempty"`
	CountryCode string `json:"country_code"`
	Zip         string `json:"zip"`
}

// CreateOrder submits a paid storefront order for fulfillment and confirms
// it, returning the Printful order id.
func (c *Client) CreateOrder(ctx context.Context, order *models.Order) (string, error) {
	items := make([]orderItem, 0, len(order.Lines))
	for _, line := range order.Lines {
		placements := make([]Placement, 0, len(line.Placements))
		for _, p := range line.Placements {
			placements = append(placements, Placement{
				Placement: p.Placement,
				Technique: line.Technique,
				Layers:    []Layer{{Type: "file", URL: p.ImageURL}},
			})
		}
		items = append(items, orderItem{
			Source:           "catalog",
			CatalogVariantID: line.VariantID,
			Quantity:         line.Quantity,
			RetailPrice:      line.UnitPrice.StringFixed(2),
			Placements:       placements,
		})
	}

	r := order.Recipient
	payload := map[string]any{
		"external_id": order.ID,
		"recipient": orderRecipient{
			Name: r.Name, Email: r.Email, Phone: r.Phone,
			Address1: r.Address1, Address2: r.Address2, City: r.City,
			StateCode: r.StateCode, CountryCode: r.CountryCode, Zip: r.Zip,
		},
		"order_items": items,
	}

	var resp struct {
		Data struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/orders", nil, payload, &resp); err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	if resp.Data.ID == 0 {
		return "", fmt.Errorf("empty order id in response")
	}
	id := strconv.FormatInt(resp.Data.ID, 10)

	if err := c.do(ctx, http.MethodPost, "/v2/orders/"+id+"/confirmation", nil, map[string]any{}, nil); err != nil {
		return id, fmt.Errorf("confirm order %s: %w", id, err)
	}
	if c.log != nil {
		c.log.Info("printful order submitted", "order_id", order.ID, "printful_order_id", id)
	}
	return id, nil
}
