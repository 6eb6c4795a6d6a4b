package parcels

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/colisdesk/colisdesk/internal/integrations/colissimo/envelope"
	"github.com/colisdesk/colisdesk/internal/models"
)

// Enrich overlays courier/anomaly/fee fields from the REST feed onto the
// records. Best effort: any failure is logged and the originals come back
// untouched, a listing must never break because enrichment is down.
func (s *Service) Enrich(ctx context.Context, records []models.Parcel) []models.Parcel {
	if len(records) == 0 || s.rest == nil {
		return records
	}

	codes := make([]string, 0, len(records))
	for _, p := range records {
		if p.Code != "" {
			codes = append(codes, p.Code)
		}
	}
	if len(codes) == 0 {
		return records
	}

	byCode, err := s.EnrichmentFor(ctx, codes)
	if err != nil {
		slog.Warn("enrichment lookup failed", "codes", len(codes), "error", err.Error())
		return records
	}
	if len(byCode) == 0 {
		return records
	}

	out := make([]models.Parcel, len(records))
	for i, p := range records {
		if e, ok := byCode[p.Code]; ok {
			overlay(&p, e)
		}
		out[i] = p
	}
	return out
}

// EnrichmentFor looks the codes up in one batch call and indexes the result
// by code barre.
func (s *Service) EnrichmentFor(ctx context.Context, codes []string) (map[string]models.Enrichment, error) {
	raw, err := s.rest.ListByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	out := envelope.Resolve(raw)
	if err := out.Err(); err != nil {
		return nil, err
	}

	byCode := map[string]models.Enrichment{}
	for _, item := range itemsOf(out.Content) {
		b, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var e models.Enrichment
		if err := json.Unmarshal(b, &e); err != nil || e.Code == "" {
			continue
		}
		byCode[e.Code] = e
	}
	return byCode, nil
}

func itemsOf(content any) []any {
	switch t := envelope.Unwrap(content).(type) {
	case []any:
		return t
	case map[string]any:
		for _, k := range []string{"colis", "data", "items", "list"} {
			if arr, ok := envelope.Unwrap(t[k]).([]any); ok {
				return arr
			}
		}
	}
	return nil
}

// overlay fills gaps only. Fields already present on the record win, the
// enrichment feed lags the tracking feed.
func overlay(p *models.Parcel, e models.Enrichment) {
	if p.CourierName == "" {
		p.CourierName = e.CourierName
	}
	if p.CourierPhone == "" {
		p.CourierPhone = e.CourierPhone
	}
	if p.LastAnomaly == "" {
		p.LastAnomaly = e.LastAnomaly
	}
	if p.PickupDate == "" {
		p.PickupDate = e.PickupDate
	}
	if p.DeliveryDate == "" {
		p.DeliveryDate = e.DeliveryDate
	}
	if p.DeliveryFee == 0 {
		p.DeliveryFee = e.DeliveryFee
	}
	if p.ReturnFee == 0 {
		p.ReturnFee = e.ReturnFee
	}
}
