// Marketcast - Inventory Demand Forecasting for Market Vendors
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marketcast

package forecast

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

const testVendor = "vendor-1"

// fixedClock returns a Clock frozen at t.
func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// sale builds a single line item sales record at noon on day.
func sale(id, venueID, productID string, day time.Time, qty int) SalesRecord {
	return SalesRecord{
		ID:        id,
		VendorID:  testVendor,
		VenueID:   venueID,
		Timestamp: day.Add(12 * time.Hour),
		Total:     decimal.NewFromInt(int64(qty * 3)),
		LineItems: []LineItem{{ProductID: productID, Quantity: qty, UnitPrice: decimal.NewFromInt(3)}},
	}
}

// dailySales returns one sale per day for days consecutive days ending the
// day before end.
func dailySales(productID, venueID string, end time.Time, days int, qty func(i int) int) []SalesRecord {
	out := make([]SalesRecord, 0, days)
	for i := 0; i < days; i++ {
		d := end.AddDate(0, 0, -(days - i))
		out = append(out, sale(productID+"-"+d.Format("20060102"), venueID, productID, d, qty(i)))
	}
	return out
}

func constQty(q int) func(int) int { return func(int) int { return q } }

// memHistory is an in-memory SalesHistoryAccessor.
type memHistory struct {
	records []SalesRecord
	err     error
	calls   atomic.Int32
}

func (h *memHistory) QuerySales(_ context.Context, q SalesQuery) ([]SalesRecord, error) {
	h.calls.Add(1)
	if h.err != nil {
		return nil, h.err
	}
	var out []SalesRecord
	for _, r := range h.records {
		if r.VendorID != q.VendorID {
			continue
		}
		if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && !r.Timestamp.Before(q.End) {
			continue
		}
		if q.VenueID != "" && r.VenueID != q.VenueID {
			continue
		}
		if q.ProductID != "" {
			if _, ok := r.QuantityFor(q.ProductID); !ok {
				continue
			}
		}
		out = append(out, r)
	}
	// Newest first, to check callers do not rely on order.
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// memCatalog is an in-memory ProductCatalog.
type memCatalog struct {
	products []Product
	err      error
}

func (c *memCatalog) GetProduct(_ context.Context, vendorID, productID string) (*Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	for i := range c.products {
		if c.products[i].VendorID == vendorID && c.products[i].ID == productID {
			p := c.products[i]
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (c *memCatalog) ListActiveProducts(_ context.Context, vendorID string, limit int) ([]Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []Product
	for _, p := range c.products {
		if p.VendorID == vendorID && p.Active {
			out = append(out, p)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// memStore is an in-memory RecommendationStore.
type memStore struct {
	mu              sync.Mutex
	recs            map[string]*Recommendation
	feedback        map[string]*Feedback
	examples        map[string][]FeedbackExample
	saveErr         error
	rejectProductID string
}

func newMemStore() *memStore {
	return &memStore{
		recs:     make(map[string]*Recommendation),
		feedback: make(map[string]*Feedback),
		examples: make(map[string][]FeedbackExample),
	}
}

func (s *memStore) SaveRecommendation(_ context.Context, rec *Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if s.rejectProductID != "" && rec.ProductID == s.rejectProductID {
		return &ValidationError{Field: "product_id", Reason: "rejected by store"}
	}
	cp := *rec
	s.recs[rec.ID] = &cp
	return nil
}

func (s *memStore) GetRecommendation(_ context.Context, vendorID, id string) (*Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok || rec.VendorID != vendorID {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *memStore) MarkAccepted(_ context.Context, vendorID, id string, brought *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok || rec.VendorID != vendorID {
		return ErrNotFound
	}
	rec.UserAccepted = true
	rec.ActualQuantityBrought = brought
	return nil
}

func (s *memStore) SaveFeedback(_ context.Context, fb *Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.feedback[fb.RecommendationID]; ok {
		return ErrFeedbackExists
	}
	cp := *fb
	s.feedback[fb.RecommendationID] = &cp
	if rec, ok := s.recs[fb.RecommendationID]; ok {
		s.examples[fb.VendorID] = append(s.examples[fb.VendorID], FeedbackExample{
			RecommendationID:   rec.ID,
			Features:           rec.Features,
			ActualQuantitySold: fb.ActualQuantitySold,
		})
	}
	return nil
}

func (s *memStore) ListFeedback(_ context.Context, vendorID string, since time.Time) ([]Feedback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Feedback
	for _, fb := range s.feedback {
		if fb.VendorID == vendorID && !fb.CreatedAt.Before(since) {
			out = append(out, *fb)
		}
	}
	return out, nil
}

func (s *memStore) FeedbackExamples(_ context.Context, vendorID string) ([]FeedbackExample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FeedbackExample(nil), s.examples[vendorID]...), nil
}

func (s *memStore) ListVendorsWithFeedback(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for v := range s.examples {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu        sync.Mutex
	generated []string
	feedback  []string
	retrained []*RetrainResult
	err       error
}

func (p *recordingPublisher) RecommendationGenerated(_ context.Context, rec *Recommendation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generated = append(p.generated, rec.ID)
	return p.err
}

func (p *recordingPublisher) FeedbackRecorded(_ context.Context, fb *Feedback) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feedback = append(p.feedback, fb.ID)
	return p.err
}

func (p *recordingPublisher) ModelRetrained(_ context.Context, _ string, res *RetrainResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retrained = append(p.retrained, res)
	return p.err
}

// constantModel predicts value for every input.
func constantModel(tag string, value float64) *LinearModel {
	return &LinearModel{
		Algorithm: "constant",
		Tag:       tag,
		Scaler:    Scaler{Mean: make([]float64, NumFeatures), Scale: make([]float64, NumFeatures)},
		Intercept: value,
		Weights:   make([]float64, NumFeatures),
	}
}

// stubTrainer returns a fixed model or error and counts calls.
type stubTrainer struct {
	model *LinearModel
	err   error
	calls atomic.Int32
}

func (t *stubTrainer) Name() string { return "stub" }

func (t *stubTrainer) Fit([]LabeledExample) (*LinearModel, error) {
	t.calls.Add(1)
	if t.err != nil {
		return nil, t.err
	}
	return t.model, nil
}

func intPtr(v int) *int { return &v }
