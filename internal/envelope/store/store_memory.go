package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"custodia/internal/envelope/models"
	id "custodia/pkg/domain"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
)

type balanceKey struct {
	envelope id.EnvelopeID
	party    id.PartyID
}

type tagKey struct {
	envelope id.EnvelopeID
	holder   id.PartyID
	currency id.Currency
}

// InMemory holds descriptors, balances, receipts, FX records and envelope
// configuration. Every write inside a ledger transaction is journaled and
// undone if the transaction fails.
type InMemory struct {
	mu          sync.RWMutex
	descriptors map[id.EnvelopeID]*models.Descriptor
	balances    map[balanceKey]id.Amount
	issued      map[id.EnvelopeID]id.Amount
	receipts    map[id.EnvelopeID][]models.Receipt
	fxRecords   map[id.EnvelopeID][]models.FXRecord
	tags        map[tagKey]models.ValueTag
	exempt      map[id.PartyID]bool
	operators   map[id.PartyID]bool
	currencies  map[id.Currency]models.CurrencyAsset
	settings    models.Settings
}

func NewInMemory() *InMemory {
	return &InMemory{
		descriptors: make(map[id.EnvelopeID]*models.Descriptor),
		balances:    make(map[balanceKey]id.Amount),
		issued:      make(map[id.EnvelopeID]id.Amount),
		receipts:    make(map[id.EnvelopeID][]models.Receipt),
		fxRecords:   make(map[id.EnvelopeID][]models.FXRecord),
		tags:        make(map[tagKey]models.ValueTag),
		exempt:      make(map[id.PartyID]bool),
		operators:   make(map[id.PartyID]bool),
		currencies:  make(map[id.Currency]models.CurrencyAsset),
		settings:    models.Settings{ComplianceEnabled: true},
	}
}

// put must be called with s.mu held.
func put[K comparable, V any](ctx context.Context, s *InMemory, m map[K]V, k K, v V) {
	prev, existed := m[k]
	m[k] = v
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
}

// appendTo must be called with s.mu held.
func appendTo[V any](ctx context.Context, s *InMemory, m map[id.EnvelopeID][]V, k id.EnvelopeID, v V) {
	n := len(m[k])
	m[k] = append(m[k], v)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if len(m[k]) > n {
			m[k] = m[k][:n]
		}
	})
}

// FindDescriptor returns the descriptor or sentinel.ErrNotFound.
func (s *InMemory) FindDescriptor(_ context.Context, envelope id.EnvelopeID) (*models.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.descriptors[envelope]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *d
	return &c, nil
}

// CreateDescriptor stores a new descriptor. Returns sentinel.ErrConflict if
// it already exists.
func (s *InMemory) CreateDescriptor(ctx context.Context, d *models.Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.descriptors[d.ID]; ok {
		return fmt.Errorf("envelope %s: %w", d.ID, sentinel.ErrConflict)
	}
	c := *d
	put(ctx, s, s.descriptors, d.ID, &c)
	return nil
}

func (s *InMemory) ListDescriptors(_ context.Context) ([]*models.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Descriptor, 0, len(s.descriptors))
	for _, d := range s.descriptors {
		c := *d
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) Balance(_ context.Context, envelope id.EnvelopeID, party id.PartyID) (id.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[balanceKey{envelope, party}], nil
}

func (s *InMemory) SetBalance(ctx context.Context, envelope id.EnvelopeID, party id.PartyID, amount id.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	put(ctx, s, s.balances, balanceKey{envelope, party}, amount)
	return nil
}

// Holders returns every non-zero balance of the envelope.
func (s *InMemory) Holders(_ context.Context, envelope id.EnvelopeID) (map[id.PartyID]id.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[id.PartyID]id.Amount)
	for k, v := range s.balances {
		if k.envelope == envelope && v > 0 {
			out[k.party] = v
		}
	}
	return out, nil
}

func (s *InMemory) TotalIssued(_ context.Context, envelope id.EnvelopeID) (id.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.issued[envelope], nil
}

func (s *InMemory) SetTotalIssued(ctx context.Context, envelope id.EnvelopeID, amount id.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	put(ctx, s, s.issued, envelope, amount)
	return nil
}

func (s *InMemory) AppendReceipt(ctx context.Context, r models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	appendTo(ctx, s, s.receipts, r.Envelope, r)
	return nil
}

func (s *InMemory) CountReceipts(_ context.Context, envelope id.EnvelopeID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.receipts[envelope]), nil
}

func (s *InMemory) ListReceipts(_ context.Context, envelope id.EnvelopeID) ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Receipt{}, s.receipts[envelope]...), nil
}

func (s *InMemory) AppendFXRecord(ctx context.Context, r models.FXRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	appendTo(ctx, s, s.fxRecords, r.Envelope, r)
	return nil
}

func (s *InMemory) ListFXRecords(_ context.Context, envelope id.EnvelopeID) ([]models.FXRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.FXRecord{}, s.fxRecords[envelope]...), nil
}

// FindValueTag returns holder's tag or sentinel.ErrNotFound.
func (s *InMemory) FindValueTag(_ context.Context, envelope id.EnvelopeID, holder id.PartyID, currency id.Currency) (*models.ValueTag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tags[tagKey{envelope, holder, currency}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &t, nil
}

// SaveValueTag replaces the tag. A tag with zero units is removed.
func (s *InMemory) SaveValueTag(ctx context.Context, t models.ValueTag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tagKey{t.Envelope, t.Holder, t.Currency}
	if t.Units > 0 {
		put(ctx, s, s.tags, k, t)
		return nil
	}
	prev, existed := s.tags[k]
	if !existed {
		return nil
	}
	delete(s.tags, k)
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.tags[k] = prev
	})
	return nil
}

// ListValueTags returns the envelope's tags ordered by holder then
// currency.
func (s *InMemory) ListValueTags(_ context.Context, envelope id.EnvelopeID) ([]models.ValueTag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ValueTag
	for k, t := range s.tags {
		if k.envelope == envelope {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Holder != out[j].Holder {
			return out[i].Holder < out[j].Holder
		}
		return out[i].Currency < out[j].Currency
	})
	return out, nil
}

func (s *InMemory) IsExempt(_ context.Context, party id.PartyID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exempt[party], nil
}

func (s *InMemory) SetExempt(ctx context.Context, party id.PartyID, exempt bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	put(ctx, s, s.exempt, party, exempt)
	return nil
}

func (s *InMemory) IsOperator(_ context.Context, party id.PartyID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.operators[party], nil
}

func (s *InMemory) SetOperator(ctx context.Context, party id.PartyID, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	put(ctx, s, s.operators, party, approved)
	return nil
}

// FindCurrencyAsset returns the asset registered for currency or
// sentinel.ErrNotFound.
func (s *InMemory) FindCurrencyAsset(_ context.Context, currency id.Currency) (*models.CurrencyAsset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.currencies[currency]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &a, nil
}

// CurrencyOf returns the currency an underlying asset was registered under.
func (s *InMemory) CurrencyOf(_ context.Context, class id.AssetClass, asset id.AssetRef) (id.Currency, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c, a := range s.currencies {
		if a.AssetClass == class && a.Asset == asset {
			return c, true, nil
		}
	}
	return "", false, nil
}

func (s *InMemory) SaveCurrencyAsset(ctx context.Context, a models.CurrencyAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	put(ctx, s, s.currencies, a.Currency, a)
	return nil
}

func (s *InMemory) Settings(_ context.Context) (models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *InMemory) SaveSettings(ctx context.Context, settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.settings
	s.settings = settings
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.settings = prev
	})
	return nil
}
