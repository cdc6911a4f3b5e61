package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"cart-pricing-api/internal/models"
)

// SaveCart stores a new cart on the backend and returns the assigned id
func (c *PriceClient) SaveCart(ctx context.Context, req models.SaveCartRequest) (string, error) {
	body, err := c.do(ctx, EndpointSavedCarts, http.MethodPost, "/saved-carts", req)
	if err != nil {
		return "", err
	}

	var resp models.SaveCartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", models.NewUnavailableError("malformed save response", err)
	}

	id := strings.TrimSpace(resp.ID.String())
	if id == "" {
		id = strings.TrimSpace(resp.CartID.String())
	}
	if id == "" {
		return "", models.NewUnavailableError("save response carried no id", nil)
	}
	return id, nil
}

// UpdateCart re-saves an existing cart under the same id
func (c *PriceClient) UpdateCart(ctx context.Context, id string, req models.SaveCartRequest) error {
	_, err := c.do(ctx, EndpointSavedCarts, http.MethodPut, savedCartPath(id), req)
	return err
}

// ListCarts returns the saved-cart summaries in backend order
func (c *PriceClient) ListCarts(ctx context.Context) ([]models.SavedCartWire, error) {
	body, err := c.do(ctx, EndpointSavedCarts, http.MethodGet, "/saved-carts", nil)
	if err != nil {
		return nil, err
	}

	carts, err := normalizeSavedCarts(body)
	if err != nil {
		return nil, models.NewUnavailableError("malformed saved-cart list", err)
	}
	return carts, nil
}

// GetCart returns the full detail of one saved cart
func (c *PriceClient) GetCart(ctx context.Context, id string) (*models.SavedCartWire, error) {
	body, err := c.do(ctx, EndpointSavedCarts, http.MethodGet, savedCartPath(id), nil)
	if err != nil {
		return nil, err
	}

	var saved models.SavedCartWire
	if err := json.Unmarshal(body, &saved); err != nil {
		return nil, models.NewUnavailableError("malformed saved-cart detail", err)
	}
	if saved.ID == "" {
		saved.ID = models.FlexString(id)
	}
	return &saved, nil
}

// DeleteCart deletes a saved cart. A missing cart surfaces as a rejected
// 404; see IsNotFound.
func (c *PriceClient) DeleteCart(ctx context.Context, id string) error {
	_, err := c.do(ctx, EndpointSavedCarts, http.MethodDelete, savedCartPath(id), nil)
	return err
}

func savedCartPath(id string) string {
	return "/saved-carts/" + url.PathEscape(id)
}

func normalizeSavedCarts(body []byte) ([]models.SavedCartWire, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errEmptyBody
	}

	var carts []models.SavedCartWire
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &carts); err != nil {
			return nil, fmt.Errorf("failed to decode saved-cart list: %w", err)
		}
	} else {
		var wrapped struct {
			Carts []models.SavedCartWire `json:"carts"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode saved-cart envelope: %w", err)
		}
		carts = wrapped.Carts
	}

	if carts == nil {
		carts = []models.SavedCartWire{}
	}
	return carts, nil
}
