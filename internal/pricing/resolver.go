package pricing

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"cart-pricing-api/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ComparisonClient submits a cart for cross-store comparison and returns the
// normalized backend answer.
type ComparisonClient interface {
	CompareCart(ctx context.Context, req models.CheapestCartRequest) (*models.CartComparison, error)
}

// ComparisonObserver is notified of every resolution outcome
type ComparisonObserver interface {
	RecordComparison(ctx context.Context, outcome string, quoteCount int)
}

// Comparison outcomes reported to the observer
const (
	OutcomeResolved      = "resolved"
	OutcomeEmptyCart     = "empty_cart"
	OutcomeInvalid       = "invalid"
	OutcomeNoStores      = "no_stores"
	OutcomeUnavailable   = "unavailable"
	OutcomeRejected      = "rejected"
	OutcomeUnknownFailed = "failed"
)

// Resolver turns a cart snapshot and a city into a ranked comparison result.
// It holds no cart state and never retries.
type Resolver struct {
	client   ComparisonClient
	observer ComparisonObserver
	now      func() time.Time
}

// NewResolver creates a new cheapest-cart resolver
func NewResolver(client ComparisonClient) *Resolver {
	return &Resolver{
		client: client,
		now:    time.Now,
	}
}

// SetObserver sets the observer notified of resolution outcomes
func (r *Resolver) SetObserver(observer ComparisonObserver) {
	r.observer = observer
}

// Resolve compares the cart across the stores of city. An empty cart fails
// with models.ErrEmptyCart before any network call.
func (r *Resolver) Resolve(ctx context.Context, cart models.CartSnapshot, city string) (*models.CheapestCartResult, error) {
	if cart.IsEmpty() {
		r.record(ctx, OutcomeEmptyCart, 0)
		return nil, models.NewEmptyCartError("cannot compare an empty cart")
	}
	city = strings.TrimSpace(city)
	if city == "" {
		r.record(ctx, OutcomeInvalid, 0)
		return nil, models.NewValidationError("city", "must not be blank")
	}

	req := models.CheapestCartRequest{
		City:  city,
		Items: make([]models.CartItemRequest, 0, len(cart.Lines)),
	}
	for _, line := range cart.Lines {
		req.Items = append(req.Items, models.CartItemRequest{
			ItemName: line.ItemIdentity,
			Quantity: line.Quantity,
		})
	}

	slog.Debug("Submitting cart for comparison", "city", city, "line_count", len(req.Items), "cart_version", cart.Version)

	comparison, err := r.client.CompareCart(ctx, req)
	if err != nil {
		err = classifyFailure(err)
		r.record(ctx, outcomeFor(err), 0)
		slog.Warn("Cart comparison failed", "city", city, "error", err)
		return nil, err
	}

	result, err := r.buildResult(cart, city, comparison)
	if err != nil {
		r.record(ctx, outcomeFor(err), len(comparison.Quotes))
		slog.Info("No store can price the cart", "city", city, "quote_count", len(comparison.Quotes))
		return nil, err
	}

	r.record(ctx, OutcomeResolved, len(result.AllQuotes))
	slog.Info("Cart comparison resolved",
		"city", city,
		"result_id", result.ID,
		"best_chain", result.BestQuote.Chain,
		"best_store", result.BestQuote.StoreID,
		"best_total", result.BestQuote.TotalPrice.StringFixed(2),
		"savings_percent", result.SavingsPercent.StringFixed(2),
		"quote_count", len(result.AllQuotes))

	return result, nil
}

func (r *Resolver) buildResult(cart models.CartSnapshot, city string, comparison *models.CartComparison) (*models.CheapestCartResult, error) {
	if comparison == nil || len(comparison.Quotes) == 0 {
		return nil, models.NewNoAvailableStoresError(city)
	}

	all := make([]models.StoreQuote, len(comparison.Quotes))
	copy(all, comparison.Quotes)
	SortQuotes(all)

	// a store carrying none of the requested items is never a candidate
	cartSize := cart.LineCount()
	usable := make([]models.StoreQuote, 0, len(all))
	complete := make([]models.StoreQuote, 0, len(all))
	for _, q := range all {
		if q.MissingItemCount >= cartSize {
			continue
		}
		usable = append(usable, q)
		if q.MissingItemCount == 0 {
			complete = append(complete, q)
		}
	}
	if len(usable) == 0 {
		return nil, models.NewNoAvailableStoresError(city)
	}

	best := usable[0]
	worstPool := complete
	if len(worstPool) == 0 {
		worstPool = usable
	}
	worst := worstPool[len(worstPool)-1]

	savings := worst.TotalPrice.Sub(best.TotalPrice)
	if savings.IsNegative() {
		savings = decimal.Zero
	}

	// item prices are only meaningful at the store they were quoted for
	perItem := make(map[string]decimal.Decimal, len(comparison.ItemPrices))
	if comparison.ItemPricesFrom == best.Ref() {
		for identity, price := range comparison.ItemPrices {
			perItem[identity] = price
		}
	} else if len(comparison.ItemPrices) > 0 {
		slog.Debug("Dropping item prices quoted for another store",
			"prices_chain", comparison.ItemPricesFrom.Chain,
			"prices_store", comparison.ItemPricesFrom.StoreID,
			"best_chain", best.Chain,
			"best_store", best.StoreID)
	}

	snapshot := cart
	snapshot.Lines = make([]models.CartLine, len(cart.Lines))
	copy(snapshot.Lines, cart.Lines)

	return &models.CheapestCartResult{
		ID:             uuid.NewString(),
		City:           city,
		Cart:           snapshot,
		BestQuote:      best,
		WorstQuote:     worst,
		AllQuotes:      all,
		SavingsAmount:  savings,
		SavingsPercent: SavingsPercent(best.TotalPrice, worst.TotalPrice),
		PerItemPrices:  perItem,
		ResolvedAt:     r.now(),
	}, nil
}

// SortQuotes orders quotes ascending by total price, then by fewer missing
// items, then by chain and store id.
func SortQuotes(quotes []models.StoreQuote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		a, b := quotes[i], quotes[j]
		if c := a.TotalPrice.Cmp(b.TotalPrice); c != 0 {
			return c < 0
		}
		if a.MissingItemCount != b.MissingItemCount {
			return a.MissingItemCount < b.MissingItemCount
		}
		if a.Chain != b.Chain {
			return a.Chain < b.Chain
		}
		return a.StoreID < b.StoreID
	})
}

// classifyFailure makes sure nothing leaves the resolver as an unstructured
// error.
func classifyFailure(err error) error {
	var structured *models.Error
	if errors.As(err, &structured) {
		return err
	}
	return models.NewUnavailableError("comparison failed", err)
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, models.ErrEmptyCart):
		return OutcomeEmptyCart
	case errors.Is(err, models.ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, models.ErrNoAvailableStores):
		return OutcomeNoStores
	case errors.Is(err, models.ErrPriceServiceUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, models.ErrPriceServiceRejected):
		return OutcomeRejected
	default:
		return OutcomeUnknownFailed
	}
}

func (r *Resolver) record(ctx context.Context, outcome string, quoteCount int) {
	if r.observer != nil {
		r.observer.RecordComparison(ctx, outcome, quoteCount)
	}
}
