package api

import (
	"calc-server/internal/cache"
	"calc-server/internal/catalog"
	"calc-server/internal/httpapi"
	"calc-server/internal/model"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(httpapi.New(httpapi.Options{Cache: cache.NewMemory(time.Minute)}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func payload() *model.Payload {
	offer := model.Offer{Quantity: model.Float(10)}
	offer.ID = 1
	return &model.Payload{
		ElementsStore: model.ElementsStore{
			catalog.SectionDetails: {{ID: 1, Name: "Деталь"}},
		},
		SelectedOffers: []model.Offer{offer},
		Preset:          &model.Preset{Properties: model.PresetProperties{CalcDetails: []int{1}}},
		PriceTypes:      []model.PriceType{},
	}
}

func TestClient_Calculate(t *testing.T) {
	srv := newServer(t)
	c := NewClient(srv.URL, 5*time.Second, nil)

	res, err := c.Calculate(context.Background(), payload())
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if len(res.Offers) != 1 || res.Offers[0].OfferID != 1 || res.Offers[0].Quantity != 10 || res.Cached {
		t.Fatalf("result = %+v", res)
	}

	res, err = c.Calculate(context.Background(), payload())
	if err != nil || !res.Cached {
		t.Fatalf("second call: %+v %v", res, err)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := newServer(t)
	c := NewClient(srv.URL, 5*time.Second, nil)

	p := payload()
	p.PriceTypes = nil
	_, err := c.Calculate(context.Background(), p)

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Message != "Missing or invalid priceTypes in initPayload" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
}

func TestClient_HealthAndExport(t *testing.T) {
	srv := newServer(t)
	c := NewClient(srv.URL, 5*time.Second, nil)

	h, err := c.Health(context.Background())
	if err != nil || h.Status != "ok" {
		t.Fatalf("Health: %+v %v", h, err)
	}

	book, err := c.Export(context.Background(), payload())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	// xlsx is a zip archive
	if len(book) < 4 || string(book[:2]) != "PK" {
		t.Fatalf("not an xlsx workbook")
	}
}
