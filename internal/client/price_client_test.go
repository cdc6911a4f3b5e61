package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cart-pricing-api/internal/cache"
	"cart-pricing-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	endpoint string
	err      error
}

type upstreamRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *upstreamRecorder) RecordUpstreamCall(ctx context.Context, endpoint string, duration time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{endpoint: endpoint, err: err})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*PriceClient, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return NewPriceClient(server.URL+"/", "secret", 2*time.Second), &hits
}

func TestCompareCart_SendsRequestAndNormalizes(t *testing.T) {
	var received models.CheapestCartRequest
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cheapest-cart", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"best_store": {"chain": "A", "store_id": 1, "total_price": 9.5}, "savings_amount": 0}`))
	})

	req := models.CheapestCartRequest{
		City:  "Haifa",
		Items: []models.CartItemRequest{{ItemName: "milk", Quantity: 2}},
	}
	comparison, err := client.CompareCart(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, req, received)
	assert.Equal(t, []string{"A/1/9.50/0"}, quoteStrings(comparison.Quotes))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestCompareCart_RejectedCarriesBackendMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail": "unknown city"}`))
	})

	_, err := client.CompareCart(context.Background(), models.CheapestCartRequest{City: "Atlantis"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrPriceServiceRejected))
	var structured *models.Error
	require.True(t, errors.As(err, &structured))
	assert.Equal(t, http.StatusUnprocessableEntity, structured.StatusCode)
	assert.Equal(t, "unknown city", structured.Message)
	assert.False(t, models.IsRetryable(err))
}

func TestCompareCart_PlainTextErrorBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway upstream", http.StatusBadGateway)
	})

	_, err := client.CompareCart(context.Background(), models.CheapestCartRequest{City: "Haifa"})

	var structured *models.Error
	require.True(t, errors.As(err, &structured))
	assert.Equal(t, "bad gateway upstream", structured.Message)
}

func TestCompareCart_MalformedBodyIsUnavailable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	})

	_, err := client.CompareCart(context.Background(), models.CheapestCartRequest{City: "Haifa"})

	assert.True(t, errors.Is(err, models.ErrPriceServiceUnavailable))
	assert.True(t, models.IsRetryable(err))
}

func TestCompareCart_TransportFailureIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := NewPriceClient(server.URL, "", time.Second)

	_, err := client.CompareCart(context.Background(), models.CheapestCartRequest{City: "Haifa"})

	assert.True(t, errors.Is(err, models.ErrPriceServiceUnavailable))
}

func TestCompareCart_TimeoutIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()
	client := NewPriceClient(server.URL, "", 20*time.Millisecond)

	_, err := client.CompareCart(context.Background(), models.CheapestCartRequest{City: "Haifa"})

	assert.True(t, errors.Is(err, models.ErrPriceServiceUnavailable))
}

func TestCompareCart_NoTokenNoAuthorizationHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := NewPriceClient(server.URL, "", time.Second).CompareCart(context.Background(), models.CheapestCartRequest{City: "Haifa"})
	assert.NoError(t, err)
}

func TestCompareCart_NeverCached(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	c := cache.NewTTLCache(time.Minute, time.Minute)
	defer c.Close()
	client.SetCache(c)

	for i := 0; i < 2; i++ {
		_, err := client.CompareCart(context.Background(), models.CheapestCartRequest{City: "Haifa"})
		require.NoError(t, err)
	}

	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestSearchByItem_EscapesAndCaches(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prices/by-item/Tel Aviv/milk 3%", r.URL.Path)
		w.Write([]byte(`[{"item_code": "1", "item_name": "Milk", "prices": [{"chain": "A", "store_id": "1", "price": 5}]}]`))
	})
	c := cache.NewTTLCache(time.Minute, time.Minute)
	defer c.Close()
	client.SetCache(c)

	first, err := client.SearchByItem(context.Background(), "Tel Aviv", "milk 3%")
	require.NoError(t, err)
	second, err := client.SearchByItem(context.Background(), "tel aviv", "MILK 3%")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ItemIdentity, second[0].ItemIdentity)
	assert.True(t, first[0].LowestPrice.Equal(second[0].LowestPrice))
	assert.Equal(t, models.PriceLevelBest, second[0].StorePrices[0].Level)
}

func TestIdentical(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/prices/identical/Haifa/7290000000001", r.URL.Path)
		w.Write([]byte(`{"products": [
			{"chain": "A", "store_id": "1", "item_code": "7290000000001", "item_name": "Milk", "price": 6},
			{"chain": "B", "store_id": "2", "item_code": "7290000000001", "item_name": "Milk", "price": 5}
		]}`))
	})

	products, err := client.Identical(context.Background(), "Haifa", "7290000000001")
	require.NoError(t, err)

	require.Len(t, products, 1)
	assert.Equal(t, "B", products[0].StorePrices[0].Chain)
	assert.Equal(t, models.PriceLevelHigh, products[0].StorePrices[1].Level)
}

func TestCities_FallsBackOn404(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/cities-list" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"cities": ["Haifa", "Eilat"]}`))
	})

	cities, err := client.Cities(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Haifa", "Eilat"}, cities)
	assert.Equal(t, []string{"/cities-list", "/cities"}, paths)
}

func TestCities_BareArrayCached(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["Haifa"]`))
	})
	c := cache.NewTTLCache(time.Minute, time.Minute)
	defer c.Close()
	client.SetCache(c)

	for i := 0; i < 3; i++ {
		cities, err := client.Cities(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"Haifa"}, cities)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestCities_ServerErrorNotFallback(t *testing.T) {
	client, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Cities(context.Background())

	assert.True(t, errors.Is(err, models.ErrPriceServiceRejected))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestObserverRecordsCalls(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	recorder := &upstreamRecorder{}
	client.SetObserver(recorder)

	_, err := client.CompareCart(context.Background(), models.CheapestCartRequest{City: "Haifa"})
	require.Error(t, err)

	require.Len(t, recorder.calls, 1)
	assert.Equal(t, EndpointCheapestCart, recorder.calls[0].endpoint)
	assert.True(t, errors.Is(recorder.calls[0].err, models.ErrPriceServiceRejected))
}

func TestSavedCartEndpoints(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/saved-carts":
			var req models.SaveCartRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Weekly", req.Name)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"cart_id": 42}`))
		case r.Method == http.MethodPut && r.URL.Path == "/saved-carts/42":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == "/saved-carts":
			w.Write([]byte(`{"carts": [{"id": 42, "name": "Weekly", "city": "Haifa", "item_count": 3}]}`))
		case r.Method == http.MethodGet && r.URL.Path == "/saved-carts/42":
			w.Write([]byte(`{"name": "Weekly", "items": [{"item_name": "milk", "quantity": 2}]}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/saved-carts/42":
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	id, err := client.SaveCart(ctx, models.SaveCartRequest{Name: "Weekly", City: "Haifa"})
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	require.NoError(t, client.UpdateCart(ctx, id, models.SaveCartRequest{Name: "Weekly"}))

	carts, err := client.ListCarts(ctx)
	require.NoError(t, err)
	require.Len(t, carts, 1)
	assert.Equal(t, "42", carts[0].ID.String())

	detail, err := client.GetCart(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "42", detail.ID.String())
	assert.Len(t, detail.Items, 1)

	require.NoError(t, client.DeleteCart(ctx, id))

	err = client.DeleteCart(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestSaveCart_NoIDIsUnavailable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})

	_, err := client.SaveCart(context.Background(), models.SaveCartRequest{Name: "x"})

	assert.True(t, errors.Is(err, models.ErrPriceServiceUnavailable))
}
