// Package fake is an in-memory stand-in for both provider boundaries so the
// whole stack can run without upstream access (provider.mode: fake). The data
// is deterministic: same seed, same listing, same envelope quirks as the real
// API (JSON-строки внутри ответов, nbPages строкой и т.д.).
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/colisdesk/colisdesk/internal/models"
)

const pageSize = 10

type Provider struct {
	mu      sync.Mutex
	parcels map[string]models.Parcel
	seq     int
}

func New() *Provider {
	p := &Provider{parcels: map[string]models.Parcel{}}
	statuses := []string{
		models.StatusPending, models.StatusReadyForPickup, models.StatusInTransit,
		models.StatusDelivered, models.StatusReturned, models.StatusAnomaly,
	}
	for i := 1; i <= 25; i++ {
		code := fmt.Sprintf("CB%06d", i)
		h := fnv.New32a()
		_, _ = h.Write([]byte(code))
		p.parcels[code] = models.Parcel{
			Code:         code,
			Reference:    fmt.Sprintf("REF-%03d", i),
			Client:       fmt.Sprintf("Client %d", i),
			Address:      fmt.Sprintf("%d rue de Carthage", i),
			City:         "Tunis",
			Province:     "Tunis",
			Phone1:       fmt.Sprintf("2%07d", i),
			Designation:  "Article demo",
			PieceCount:   1,
			Price:        models.FlexFloat(10 * i),
			Type:         models.TypeSale,
			Status:       statuses[h.Sum32()%uint32(len(statuses))],
			CreationDate: fmt.Sprintf("2026-05-%02d 10:00:00", (i%28)+1),
		}
	}
	p.seq = 25
	return p
}

func (p *Provider) sortedCodes() []string {
	codes := make([]string, 0, len(p.parcels))
	for c := range p.parcels {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

func successEnvelope(content any) map[string]any {
	return map[string]any{"result_type": "success", "result_content": content}
}

func errorEnvelope(code, msg string) map[string]any {
	return map[string]any{"result_type": "erreur", "result_code": code, "result_content": msg}
}

func toAny(v any) any {
	b, _ := json.Marshal(v)
	var out any
	_ = json.Unmarshal(b, &out)
	return out
}

func (p *Provider) ListParcels(_ context.Context, page int) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	codes := p.sortedCodes()
	pages := (len(codes) + pageSize - 1) / pageSize
	if pages == 0 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}

	var items []any
	start := (page - 1) * pageSize
	for i := start; i < start+pageSize && i < len(codes); i++ {
		items = append(items, toAny(p.parcels[codes[i]]))
	}

	content := map[string]any{
		"colis":   items,
		"nbPages": fmt.Sprintf("%d", pages),
		"nbColis": fmt.Sprintf("%d", len(codes)),
	}
	// Как реальный SOAP: весь Result — JSON-строка.
	b, _ := json.Marshal(successEnvelope(content))
	return map[string]any{"ListeColisResult": string(b)}, nil
}

func (p *Provider) GetParcel(_ context.Context, code string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	parcel, ok := p.parcels[code]
	if !ok {
		return map[string]any{"getColisResult": errorEnvelope("E404", "colis inconnu")}, nil
	}
	return map[string]any{"getColisResult": successEnvelope(toAny(parcel))}, nil
}

func (p *Provider) CreateParcel(_ context.Context, in models.ParcelInput) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	code := fmt.Sprintf("CB%06d", p.seq)
	p.parcels[code] = parcelFromInput(code, in, models.StatusPending)
	return map[string]any{"AjouterColisResult": successEnvelope(map[string]any{"code": code})}, nil
}

func (p *Provider) UpdateParcel(_ context.Context, in models.ParcelInput) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	old, ok := p.parcels[in.Code]
	if !ok {
		return map[string]any{"ModifierColisResult": errorEnvelope("E404", "colis inconnu")}, nil
	}
	status := in.Status
	if status == "" {
		status = old.Status
	}
	p.parcels[in.Code] = parcelFromInput(in.Code, in, status)
	return map[string]any{"ModifierColisResult": successEnvelope(map[string]any{"code": in.Code})}, nil
}

func (p *Provider) DeleteParcel(_ context.Context, code string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.parcels[code]; !ok {
		return map[string]any{"SupprimerColisResult": errorEnvelope("E404", "colis inconnu")}, nil
	}
	delete(p.parcels, code)
	return map[string]any{"SupprimerColisResult": successEnvelope("ok")}, nil
}

func (p *Provider) ListProvinces(_ context.Context) (any, error) {
	provinces := []map[string]any{
		{"gouvernorat": "Tunis", "villes": []string{"Tunis", "Le Bardo", "La Marsa"}},
		{"gouvernorat": "Sfax", "villes": []string{"Sfax", "Sakiet Ezzit"}},
		{"gouvernorat": "Sousse", "villes": []string{"Sousse", "Hammam Sousse"}},
	}
	// Реальный listGouvernorats кодирует result_content второй раз.
	inner, _ := json.Marshal(provinces)
	env, _ := json.Marshal(map[string]any{"result_type": "success", "result_content": string(inner)})
	return map[string]any{"listGouvernoratsResult": string(env)}, nil
}

func (p *Provider) GetLabelPDF(_ context.Context, code string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.parcels[code]; !ok {
		return "", fmt.Errorf("colis inconnu: %s", code)
	}
	return "JVBERi0xLjQKJSBmYWtlIGxhYmVs", nil
}

func (p *Provider) ListByCodes(_ context.Context, codes []string) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var items []any
	for _, code := range codes {
		parcel, ok := p.parcels[code]
		if !ok {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(code))
		e := models.Enrichment{
			Code:         code,
			CourierName:  fmt.Sprintf("Livreur %d", h.Sum32()%9+1),
			CourierPhone: fmt.Sprintf("5%07d", h.Sum32()%1000000),
			DeliveryFee:  7,
		}
		if parcel.Status == models.StatusAnomaly {
			e.LastAnomaly = "client injoignable"
		}
		items = append(items, toAny(e))
	}
	return successEnvelope(map[string]any{"colis": items}), nil
}

func (p *Provider) RequestPickup(_ context.Context) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for code, parcel := range p.parcels {
		if parcel.Status == models.StatusPending {
			parcel.Status = models.StatusReadyForPickup
			p.parcels[code] = parcel
			n++
		}
	}
	if n == 0 {
		return errorEnvelope("E12", "aucun colis en attente"), nil
	}
	p.seq++
	return successEnvelope(fmt.Sprintf("https://fake.local/manifests/%d.pdf", p.seq)), nil
}

func (p *Provider) BulkCreate(_ context.Context, items []models.ParcelInput) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var created []any
	var failures []any
	for _, in := range items {
		if in.Client == "" || in.Phone1 == "" {
			failures = append(failures, map[string]any{"reference": in.Reference, "erreur": "champs obligatoires manquants"})
			continue
		}
		p.seq++
		code := fmt.Sprintf("CB%06d", p.seq)
		p.parcels[code] = parcelFromInput(code, in, models.StatusPending)
		created = append(created, code)
	}

	rt := "success"
	if len(failures) > 0 && len(created) > 0 {
		rt = "partial_success"
	} else if len(created) == 0 {
		return errorEnvelope("E30", "aucun colis cree"), nil
	}
	return map[string]any{
		"result_type": rt,
		"result_content": map[string]any{
			"nbCrees":   len(created),
			"nbTotal":   len(items),
			"lsCrees":   created,
			"lsErreurs": failures,
		},
	}, nil
}

func parcelFromInput(code string, in models.ParcelInput, status string) models.Parcel {
	return models.Parcel{
		Code:        code,
		Reference:   in.Reference,
		Client:      in.Client,
		Address:     in.Address,
		City:        in.City,
		Province:    in.Province,
		Phone1:      in.Phone1,
		Phone2:      in.Phone2,
		Designation: in.Designation,
		PieceCount:  in.PieceCount,
		Price:       in.Price,
		CODAmount:   in.CODAmount,
		Weight:      in.Weight,
		Type:        in.Type,
		Exchange:    in.Exchange,
		Comment:     in.Comment,
		Status:      status,
	}
}
