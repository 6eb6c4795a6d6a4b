package parcels

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/colisdesk/colisdesk/internal/models"
	"github.com/colisdesk/colisdesk/internal/storage/pgaudit"
	"github.com/pkg/errors"
)

func successEnv(content any) map[string]any {
	return map[string]any{"result_type": "success", "result_content": content}
}

func errorEnv(code, msg string) map[string]any {
	return map[string]any{"result_type": "erreur", "result_code": code, "result_content": msg}
}

// toAny pushes a typed value through JSON so fakes return the generic shapes
// the real clients produce.
func toAny(v any) any {
	b, _ := json.Marshal(v)
	var out any
	_ = json.Unmarshal(b, &out)
	return out
}

func listContent(records []models.Parcel, nbPages, nbColis int) map[string]any {
	items := make([]any, 0, len(records))
	for _, r := range records {
		items = append(items, toAny(r))
	}
	return map[string]any{
		"colis":   items,
		"nbPages": float64(nbPages),
		"nbColis": float64(nbColis),
	}
}

type fakeSoap struct {
	mu        sync.Mutex
	pages     [][]models.Parcel
	total     int
	failPage  int
	pageCalls []int

	parcels map[string]models.Parcel
	updated []models.ParcelInput
	deleted []string
	failOn  map[string]string // code -> error code
}

func newFakeSoap(pages [][]models.Parcel) *fakeSoap {
	total := 0
	parcels := map[string]models.Parcel{}
	for _, page := range pages {
		total += len(page)
		for _, p := range page {
			parcels[p.Code] = p
		}
	}
	return &fakeSoap{pages: pages, total: total, parcels: parcels, failOn: map[string]string{}}
}

func (f *fakeSoap) ListParcels(_ context.Context, page int) (any, error) {
	f.mu.Lock()
	f.pageCalls = append(f.pageCalls, page)
	f.mu.Unlock()

	if f.failPage != 0 && page == f.failPage {
		return nil, errors.New("boom")
	}
	if page < 1 || page > len(f.pages) {
		return successEnv(listContent(nil, len(f.pages), f.total)), nil
	}
	return successEnv(listContent(f.pages[page-1], len(f.pages), f.total)), nil
}

func (f *fakeSoap) GetParcel(_ context.Context, code string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ec, ok := f.failOn[code]; ok {
		return errorEnv(ec, "colis introuvable"), nil
	}
	p, ok := f.parcels[code]
	if !ok {
		return errorEnv("E404", "colis introuvable"), nil
	}
	return successEnv(toAny(p)), nil
}

func (f *fakeSoap) CreateParcel(_ context.Context, in models.ParcelInput) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	code := fmt.Sprintf("NEW%03d", len(f.parcels)+1)
	p := models.Parcel{Code: code, Reference: in.Reference, Client: in.Client, Status: models.StatusPending}
	f.parcels[code] = p
	return successEnv(toAny(p)), nil
}

func (f *fakeSoap) UpdateParcel(_ context.Context, in models.ParcelInput) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ec, ok := f.failOn[in.Code]; ok {
		return errorEnv(ec, "mise a jour refusee"), nil
	}
	f.updated = append(f.updated, in)
	return successEnv("ok"), nil
}

func (f *fakeSoap) DeleteParcel(_ context.Context, code string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ec, ok := f.failOn[code]; ok {
		return errorEnv(ec, "suppression refusee"), nil
	}
	f.deleted = append(f.deleted, code)
	return successEnv("ok"), nil
}

func (f *fakeSoap) ListProvinces(_ context.Context) (any, error) {
	inner, _ := json.Marshal([]map[string]any{{"gouvernorat": "Tunis"}})
	return successEnv(string(inner)), nil
}

func (f *fakeSoap) GetLabelPDF(_ context.Context, code string) (string, error) {
	return "JVBERi0=", nil
}

type fakeRest struct {
	mu          sync.Mutex
	enrichments []models.Enrichment
	lookupErr   error
	lookupCalls [][]string

	bulkResp any
	bulkErr  error
	pickup   any
}

func (f *fakeRest) ListByCodes(_ context.Context, codes []string) (any, error) {
	f.mu.Lock()
	f.lookupCalls = append(f.lookupCalls, codes)
	f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	items := make([]any, 0, len(f.enrichments))
	for _, e := range f.enrichments {
		items = append(items, toAny(e))
	}
	return successEnv(map[string]any{"colis": items}), nil
}

func (f *fakeRest) RequestPickup(_ context.Context) (any, error) {
	if f.pickup == nil {
		return successEnv("https://provider/manifests/7.pdf"), nil
	}
	return f.pickup, nil
}

func (f *fakeRest) BulkCreate(_ context.Context, items []models.ParcelInput) (any, error) {
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	if f.bulkResp != nil {
		return f.bulkResp, nil
	}
	codes := make([]string, 0, len(items))
	for i := range items {
		codes = append(codes, fmt.Sprintf("IMP%03d", i+1))
	}
	return successEnv(map[string]any{
		"nbCrees": float64(len(items)),
		"nbTotal": float64(len(items)),
		"lsCrees": toAny(codes),
	}), nil
}

type fakeAudit struct {
	mu   sync.Mutex
	runs []pgaudit.OperationRun
}

func (f *fakeAudit) RecordRun(_ context.Context, run pgaudit.OperationRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

type fakeProducer struct {
	mu   sync.Mutex
	msgs []messagesSent
}

type messagesSent struct {
	Topic string
	Key   string
	Value string
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, messagesSent{Topic: topic, Key: string(key), Value: string(value)})
	return nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[key]
	return b, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeCache) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func mkParcels(prefix string, n int, status string) []models.Parcel {
	out := make([]models.Parcel, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, models.Parcel{
			Code:      fmt.Sprintf("%s%03d", prefix, i),
			Reference: fmt.Sprintf("REF-%s-%d", prefix, i),
			Client:    fmt.Sprintf("Client %s %d", prefix, i),
			Phone1:    fmt.Sprintf("2%07d", i),
			Status:    status,
		})
	}
	return out
}
