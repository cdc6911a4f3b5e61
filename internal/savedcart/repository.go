package savedcart

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"cart-pricing-api/internal/models"
)

// Backend is the saved-cart surface of the pricing backend
type Backend interface {
	SaveCart(ctx context.Context, req models.SaveCartRequest) (string, error)
	UpdateCart(ctx context.Context, id string, req models.SaveCartRequest) error
	ListCarts(ctx context.Context) ([]models.SavedCartWire, error)
	GetCart(ctx context.Context, id string) (*models.SavedCartWire, error)
	DeleteCart(ctx context.Context, id string) error
}

// Repository bridges cart snapshots and carts persisted by the backend. It
// never touches the live cart; callers decide how loaded lines are applied.
type Repository struct {
	backend Backend
}

// NewRepository creates a new saved-cart repository
func NewRepository(backend Backend) *Repository {
	return &Repository{backend: backend}
}

// Save stores cart under name and returns the id assigned by the backend
func (r *Repository) Save(ctx context.Context, name string, cart models.CartSnapshot, city string) (string, error) {
	req, err := buildRequest(name, cart, city)
	if err != nil {
		return "", err
	}

	id, err := r.backend.SaveCart(ctx, req)
	if err != nil {
		return "", classify(err)
	}

	slog.Info("Cart saved", "saved_cart_id", id, "name", req.Name, "line_count", len(req.Items))
	return id, nil
}

// Update re-saves cart under an existing id
func (r *Repository) Update(ctx context.Context, id, name string, cart models.CartSnapshot, city string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.NewValidationError("id", "must not be blank")
	}
	req, err := buildRequest(name, cart, city)
	if err != nil {
		return err
	}

	if err := r.backend.UpdateCart(ctx, id, req); err != nil {
		if isNotFound(err) {
			return models.NewNotFoundError("saved cart", id)
		}
		return classify(err)
	}

	slog.Info("Saved cart updated", "saved_cart_id", id, "line_count", len(req.Items))
	return nil
}

// List returns saved-cart summaries, most recently updated first
func (r *Repository) List(ctx context.Context) ([]models.SavedCartSummary, error) {
	carts, err := r.backend.ListCarts(ctx)
	if err != nil {
		return nil, classify(err)
	}

	summaries := make([]models.SavedCartSummary, 0, len(carts))
	for _, c := range carts {
		summaries = append(summaries, toSummary(c))
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})

	return summaries, nil
}

// Load fetches the full detail of one saved cart
func (r *Repository) Load(ctx context.Context, id string) (*models.SavedCart, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, models.NewValidationError("id", "must not be blank")
	}

	wire, err := r.backend.GetCart(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, models.NewNotFoundError("saved cart", id)
		}
		return nil, classify(err)
	}

	saved := toSavedCart(*wire)
	if saved.ID == "" {
		saved.ID = id
	}
	return &saved, nil
}

// Delete removes a saved cart. Deleting a cart that does not exist
// succeeds.
func (r *Repository) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.NewValidationError("id", "must not be blank")
	}

	if err := r.backend.DeleteCart(ctx, id); err != nil {
		if isNotFound(err) {
			slog.Debug("Saved cart already absent", "saved_cart_id", id)
			return nil
		}
		return classify(err)
	}

	slog.Info("Saved cart deleted", "saved_cart_id", id)
	return nil
}

func buildRequest(name string, cart models.CartSnapshot, city string) (models.SaveCartRequest, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.SaveCartRequest{}, models.NewValidationError("name", "must not be blank")
	}
	if cart.IsEmpty() {
		return models.SaveCartRequest{}, models.NewValidationError("cart", "must not be empty")
	}

	items := make([]models.SavedCartItemWire, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		items = append(items, models.SavedCartItemWire{
			ItemName:    line.ItemIdentity,
			DisplayName: line.DisplayName,
			Quantity:    line.Quantity,
		})
	}

	return models.SaveCartRequest{
		Name:  name,
		City:  strings.TrimSpace(city),
		Items: items,
	}, nil
}

func toSummary(w models.SavedCartWire) models.SavedCartSummary {
	count := len(w.Items)
	if w.ItemCount != nil {
		count = *w.ItemCount
	}
	created := models.ParseTimestamp(w.CreatedAt)
	updated := models.ParseTimestamp(w.UpdatedAt)
	if updated.IsZero() {
		updated = created
	}
	return models.SavedCartSummary{
		ID:        w.ID.String(),
		Name:      w.Name,
		City:      w.City,
		ItemCount: count,
		CreatedAt: created,
		UpdatedAt: updated,
	}
}

func toSavedCart(w models.SavedCartWire) models.SavedCart {
	summary := toSummary(w)
	lines := make([]models.CartLine, 0, len(w.Items))
	for _, item := range w.Items {
		if strings.TrimSpace(item.ItemName) == "" || item.Quantity < 1 {
			continue
		}
		display := item.DisplayName
		if display == "" {
			display = item.ItemName
		}
		lines = append(lines, models.CartLine{
			ItemIdentity: item.ItemName,
			DisplayName:  display,
			Quantity:     item.Quantity,
		})
	}
	return models.SavedCart{
		ID:        summary.ID,
		Name:      summary.Name,
		City:      summary.City,
		Lines:     lines,
		CreatedAt: summary.CreatedAt,
		UpdatedAt: summary.UpdatedAt,
	}
}

func isNotFound(err error) bool {
	var e *models.Error
	if !errors.As(err, &e) {
		return false
	}
	return errors.Is(err, models.ErrNotFound) || (errors.Is(err, models.ErrPriceServiceRejected) && e.StatusCode == http.StatusNotFound)
}

func classify(err error) error {
	var e *models.Error
	if errors.As(err, &e) {
		return err
	}
	return models.NewUnavailableError("saved-cart request failed", err)
}
