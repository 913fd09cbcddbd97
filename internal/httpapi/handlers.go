package httpapi

import (
	"bytes"
	"calc-server/internal/cache"
	"calc-server/internal/calc"
	"calc-server/internal/catalog"
	"calc-server/internal/export"
	"calc-server/internal/model"
	"calc-server/internal/tree"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// badRequest is a payload validation failure with a client-facing message.
// A zero status means 400.
type badRequest struct {
	status int
	msg    string
}

func (e *badRequest) Error() string { return e.msg }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
		"uptime":    time.Since(s.started).Seconds(),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, Response{Success: false, Error: "Not found"})
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	started := s.now()
	log := s.logger.With(zap.String("request_id", RequestIDFrom(r.Context())))

	data, cached, err := s.calculate(r.Context(), r.Body, log)
	timing := &Timing{
		StartedAt:   started.UTC().Format(time.RFC3339Nano),
		CompletedAt: s.now().UTC().Format(time.RFC3339Nano),
		DurationMs:  s.now().Sub(started).Milliseconds(),
	}
	if err != nil {
		status := statusFor(err)
		log.Error("Calculation failed", zap.Int("status", status), zap.Error(err))
		writeJSON(w, status, Response{Success: false, Error: err.Error(), Timing: timing})
		return
	}

	log.Info("Calculation complete", zap.Int64("duration_ms", timing.DurationMs), zap.Bool("cached", cached))
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data, Timing: timing, Cached: cached})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	log := s.logger.With(zap.String("request_id", RequestIDFrom(r.Context())))

	data, _, err := s.calculate(r.Context(), r.Body, log)
	if err != nil {
		status := statusFor(err)
		log.Error("Export failed", zap.Int("status", status), zap.Error(err))
		writeJSON(w, status, Response{Success: false, Error: err.Error()})
		return
	}

	var results []calc.OfferResult
	if err := json.Unmarshal(data, &results); err != nil {
		log.Error("Failed to decode results for export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Internal server error"})
		return
	}
	book, err := export.Bytes(results)
	if err != nil {
		log.Error("Failed to build workbook", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Internal server error"})
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="calculation_%s.xlsx"`, s.now().Format("20060102_150405")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(book)
}

// calculate validates the request, consults the cache and runs the engine.
// It returns the JSON-encoded result array.
func (s *Server) calculate(ctx context.Context, body io.Reader, log *zap.Logger) (json.RawMessage, bool, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, false, &badRequest{status: http.StatusRequestEntityTooLarge, msg: "Request body too large"}
		}
		return nil, false, fmt.Errorf("read body: %w", err)
	}

	payload, payloadRaw, err := decodePayload(raw)
	if err != nil {
		log.Warn("Rejected calculation request", zap.Error(err))
		return nil, false, err
	}

	key := cache.Key(s.keyPrefix, payloadRaw)
	if data, err := s.cache.Get(ctx, key); err == nil {
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		return data, true, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		log.Warn("Cache read failed", zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	log.Info("Processing calculation",
		zap.Int("offers", len(payload.SelectedOffers)),
		zap.Bool("has_product", payload.Product != nil),
		zap.Bool("has_preset", payload.Preset != nil),
		zap.Int("price_types", len(payload.PriceTypes)),
		zap.Int("sections", len(payload.ElementsStore)))

	results, err := s.engine.Calculate(ctx, payload)
	if err != nil {
		return nil, false, err
	}
	s.countOffers(results)

	data, err := json.Marshal(results)
	if err != nil {
		return nil, false, fmt.Errorf("encode results: %w", err)
	}
	if err := s.cache.Set(ctx, key, data); err != nil {
		log.Warn("Cache write failed", zap.Error(err))
	}
	return data, false, nil
}

func (s *Server) countOffers(results []calc.OfferResult) {
	if s.metrics == nil {
		return
	}
	for _, r := range results {
		outcome := "ok"
		if r.Failed() {
			outcome = "failed"
		}
		s.metrics.Offers.WithLabelValues(outcome).Inc()
	}
}

// decodePayload checks the top-level shape before decoding, so a missing or
// mistyped field gets its own message.
func decodePayload(raw []byte) (*model.Payload, []byte, error) {
	var req struct {
		InitPayload json.RawMessage `json:"initPayload"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, nil, &badRequest{msg: "Invalid JSON body"}
	}
	if isNull(req.InitPayload) {
		return nil, nil, &badRequest{msg: "Missing initPayload in request body"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(req.InitPayload, &fields); err != nil {
		return nil, nil, &badRequest{msg: "Invalid initPayload: expected an object"}
	}
	if isNull(fields["elementsStore"]) {
		return nil, nil, &badRequest{msg: "Missing elementsStore in initPayload"}
	}
	if !isArray(fields["selectedOffers"]) {
		return nil, nil, &badRequest{msg: "Missing or invalid selectedOffers in initPayload"}
	}
	if !isArray(fields["priceTypes"]) {
		return nil, nil, &badRequest{msg: "Missing or invalid priceTypes in initPayload"}
	}

	var p model.Payload
	if err := json.Unmarshal(req.InitPayload, &p); err != nil {
		return nil, nil, &badRequest{msg: "Invalid initPayload: " + err.Error()}
	}
	return &p, req.InitPayload, nil
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

// statusFor maps errors to HTTP statuses. Structural catalog and tree
// problems and failed batches are 422.
func statusFor(err error) int {
	var (
		bad    *badRequest
		catErr *catalog.Error
		cyc    *tree.CyclicStructureError
		fwd    *tree.ForwardReferenceError
	)
	switch {
	case errors.As(err, &bad):
		if bad.status != 0 {
			return bad.status
		}
		return http.StatusBadRequest
	case errors.As(err, &catErr), errors.As(err, &cyc), errors.As(err, &fwd), errors.Is(err, calc.ErrAllOffersFailed):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
