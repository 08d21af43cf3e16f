package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/tbourn/go-review-reply-backend/internal/auth"
	"github.com/tbourn/go-review-reply-backend/internal/domain"
	"github.com/tbourn/go-review-reply-backend/internal/services"
)

type fakeGen struct {
	readyErr error
	validErr error
	reply    string
	err      error
	calls    int
	last     services.GenerationRequest
}

func (f *fakeGen) Ready() error { return f.readyErr }

func (f *fakeGen) Validate(req services.GenerationRequest) error {
	if f.validErr != nil {
		return f.validErr
	}
	if req.ReviewText == "" || req.BusinessType == "" {
		return services.ErrValidation
	}
	return nil
}

func (f *fakeGen) Generate(_ context.Context, req services.GenerationRequest) (*services.GenerationResult, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &services.GenerationResult{Reply: f.reply, Tone: req.Tone}, nil
}

type fakeGate struct {
	err    error
	usage  services.Usage
	admits []*auth.Identity
}

func (g *fakeGate) Admit(_ context.Context, id *auth.Identity) (services.Decision, error) {
	g.admits = append(g.admits, id)
	return services.Decision{Metered: id != nil}, g.err
}

func (g *fakeGate) Usage(context.Context, string) (services.Usage, error) {
	return g.usage, g.err
}

type fakeHist struct {
	recordErr error
	recorded  []domain.HistoryItem
	items     map[string]domain.HistoryItem
	listItems []domain.HistoryItem
	total     int64
	listErr   error
	deleted   []string
}

func (h *fakeHist) Record(_ context.Context, userID string, req services.GenerationRequest, reply string) (*domain.HistoryItem, error) {
	if h.recordErr != nil {
		return nil, h.recordErr
	}
	it := domain.HistoryItem{ID: "11111111-1111-4111-8111-111111111111", UserID: userID, OriginalReview: req.ReviewText, GeneratedReply: reply, Tone: req.Tone.String()}
	h.recorded = append(h.recorded, it)
	return &it, nil
}

func (h *fakeHist) ListPage(context.Context, string, int, int) ([]domain.HistoryItem, int64, error) {
	return h.listItems, h.total, h.listErr
}

func (h *fakeHist) Get(_ context.Context, userID, id string) (*domain.HistoryItem, error) {
	it, ok := h.items[id]
	if !ok || it.UserID != userID {
		return nil, services.ErrHistoryNotFound
	}
	return &it, nil
}

func (h *fakeHist) Delete(_ context.Context, userID, id string) error {
	it, ok := h.items[id]
	if !ok || it.UserID != userID {
		return services.ErrHistoryNotFound
	}
	h.deleted = append(h.deleted, id)
	return nil
}

type idemEntry struct{ userID, key string }

type fakeIdem struct {
	entries map[idemEntry]string
	err     error
}

func newFakeIdem() *fakeIdem { return &fakeIdem{entries: map[idemEntry]string{}} }

func (f *fakeIdem) Lookup(_ context.Context, userID, key string, _ time.Time) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	id, ok := f.entries[idemEntry{userID, key}]
	return id, ok, nil
}

func (f *fakeIdem) Remember(_ context.Context, userID, key, historyID string) error {
	if f.err != nil {
		return f.err
	}
	f.entries[idemEntry{userID, key}] = historyID
	return nil
}

var errBoom = errors.New("boom")
