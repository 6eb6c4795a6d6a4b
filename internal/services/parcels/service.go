package parcels

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/colisdesk/colisdesk/internal/broker/messages"
	"github.com/colisdesk/colisdesk/internal/cache"
	"github.com/colisdesk/colisdesk/internal/integrations/colissimo"
	"github.com/colisdesk/colisdesk/internal/integrations/colissimo/envelope"
	"github.com/colisdesk/colisdesk/internal/models"
	"github.com/colisdesk/colisdesk/internal/storage/pgaudit"
	"github.com/pkg/errors"
)

const (
	statsKey     = "stats:counts"
	provincesKey = "ref:gouvernorats"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type AuditLog interface {
	RecordRun(ctx context.Context, run pgaudit.OperationRun) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Service struct {
	soap colissimo.SoapClient
	rest colissimo.RestClient

	cache        cache.BytesCache
	statsTTL     time.Duration
	provincesTTL time.Duration

	producer Producer
	topic    string

	audit AuditLog

	rl             RateLimiter
	bulkRatePerMin int64

	maxPages        int
	pageConcurrency int
}

func New(soap colissimo.SoapClient, rest colissimo.RestClient) *Service {
	return &Service{
		soap:            soap,
		rest:            rest,
		statsTTL:        5 * time.Minute,
		provincesTTL:    12 * time.Hour,
		maxPages:        20,
		pageConcurrency: 4,
	}
}

func (s *Service) WithCache(c cache.BytesCache, statsTTL, provincesTTL time.Duration) *Service {
	s.cache = c
	if statsTTL > 0 {
		s.statsTTL = statsTTL
	}
	if provincesTTL > 0 {
		s.provincesTTL = provincesTTL
	}
	return s
}

func (s *Service) WithBroker(p Producer, topic string) *Service {
	s.producer = p
	s.topic = topic
	return s
}

func (s *Service) WithAudit(a AuditLog) *Service {
	s.audit = a
	return s
}

func (s *Service) WithRateLimiter(rl RateLimiter, perMinute int64) *Service {
	s.rl = rl
	if perMinute > 0 {
		s.bulkRatePerMin = perMinute
	}
	return s
}

func (s *Service) WithPaging(maxPages, concurrency int) *Service {
	if maxPages > 0 {
		s.maxPages = maxPages
	}
	if concurrency > 0 {
		s.pageConcurrency = concurrency
	}
	return s
}

// Get fetches one parcel by its tracking code.
func (s *Service) Get(ctx context.Context, code string) (models.Parcel, error) {
	if code == "" {
		return models.Parcel{}, validationf("code barre is required")
	}
	raw, err := s.soap.GetParcel(ctx, code)
	if err != nil {
		return models.Parcel{}, errors.Wrap(err, "get colis")
	}
	out := envelope.Resolve(raw)
	if err := out.Err(); err != nil {
		return models.Parcel{}, err
	}
	p, ok := envelope.ParcelFrom(out.Content)
	if !ok {
		return models.Parcel{}, errors.Errorf("colis %s not found in response", code)
	}
	if p.Code == "" {
		p.Code = code
	}
	return p, nil
}

// Create submits a new parcel. The provider assigns the tracking code; it is
// returned when the response carries it.
func (s *Service) Create(ctx context.Context, in models.ParcelInput) (models.Parcel, error) {
	if err := validateInput(in); err != nil {
		return models.Parcel{}, err
	}
	applyInputDefaults(&in)

	raw, err := s.soap.CreateParcel(ctx, in)
	if err != nil {
		return models.Parcel{}, errors.Wrap(err, "create colis")
	}
	out := envelope.Resolve(raw)
	if err := out.Err(); err != nil {
		return models.Parcel{}, err
	}

	p, ok := envelope.ParcelFrom(out.Content)
	if !ok || p.Code == "" {
		// Некоторые операции возвращают только {"code": "..."}.
		if m, isMap := envelope.Unwrap(out.Content).(map[string]any); isMap {
			if code, isStr := m["code"].(string); isStr {
				p.Code = code
			}
		}
	}
	s.publish(ctx, messages.ParcelChanged{Code: p.Code, Action: messages.ActionCreated})
	return p, nil
}

func (s *Service) Update(ctx context.Context, code string, in models.ParcelInput) error {
	if code == "" {
		return validationf("code barre is required")
	}
	if err := validateInput(in); err != nil {
		return err
	}
	applyInputDefaults(&in)
	in.Code = code

	raw, err := s.soap.UpdateParcel(ctx, in)
	if err != nil {
		return errors.Wrap(err, "update colis")
	}
	if err := envelope.Resolve(raw).Err(); err != nil {
		return err
	}
	s.publish(ctx, messages.ParcelChanged{Code: code, Action: messages.ActionUpdated, Status: in.Status})
	return nil
}

func (s *Service) Delete(ctx context.Context, code string) error {
	if code == "" {
		return validationf("code barre is required")
	}
	raw, err := s.soap.DeleteParcel(ctx, code)
	if err != nil {
		return errors.Wrap(err, "delete colis")
	}
	if err := envelope.Resolve(raw).Err(); err != nil {
		return err
	}
	s.publish(ctx, messages.ParcelChanged{Code: code, Action: messages.ActionDeleted})
	return nil
}

// LabelPDF returns the base64 label for one parcel.
func (s *Service) LabelPDF(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", validationf("code barre is required")
	}
	return s.soap.GetLabelPDF(ctx, code)
}

// Provinces returns the gouvernorat/villes reference data, cached because it
// changes on the provider's side a few times a year at most.
func (s *Service) Provinces(ctx context.Context) (any, error) {
	if s.cache != nil {
		if b, ok, err := s.cache.Get(ctx, provincesKey); err == nil && ok {
			var v any
			if json.Unmarshal(b, &v) == nil {
				return v, nil
			}
		}
	}

	raw, err := s.soap.ListProvinces(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list gouvernorats")
	}
	out := envelope.Resolve(raw)
	if err := out.Err(); err != nil {
		return nil, err
	}
	// result_content приходит закодированным второй раз
	content := envelope.Unwrap(out.Content)

	if s.cache != nil {
		if b, err := json.Marshal(content); err == nil {
			_ = s.cache.Set(ctx, provincesKey, b, s.provincesTTL)
		}
	}
	return content, nil
}

// StatusCounts returns the per-status record counts, from cache when fresh.
func (s *Service) StatusCounts(ctx context.Context) (map[string]int, error) {
	if s.cache != nil {
		if b, ok, err := s.cache.Get(ctx, statsKey); err == nil && ok {
			var counts map[string]int
			if json.Unmarshal(b, &counts) == nil {
				return counts, nil
			}
		}
	}
	return s.RefreshStatusCounts(ctx)
}

// RefreshStatusCounts re-aggregates every page and rewrites the cached
// snapshot.
func (s *Service) RefreshStatusCounts(ctx context.Context) (map[string]int, error) {
	res, err := s.FetchAll(ctx, ListOptions{Parallel: true})
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, p := range res.Records {
		status := p.Status
		if status == "" {
			status = "Unknown"
		}
		counts[status]++
	}

	if s.cache != nil {
		if b, err := json.Marshal(counts); err == nil {
			_ = s.cache.Set(ctx, statsKey, b, s.statsTTL)
		}
	}
	return counts, nil
}

// InvalidateStats drops the cached snapshot (called from the parcel.changed
// consumer so every instance reflects mutations made elsewhere).
func (s *Service) InvalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsKey); err != nil {
		slog.Warn("invalidate stats cache", "error", err.Error())
	}
}

func (s *Service) publish(ctx context.Context, msg messages.ParcelChanged) {
	if s.producer == nil || s.topic == "" {
		return
	}
	msg.At = time.Now().UTC()
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	// Событие — уведомление, не источник истины: ошибку только логируем.
	if err := s.producer.Publish(ctx, s.topic, []byte(msg.Code), b); err != nil {
		slog.Error("publish parcel.changed", "action", msg.Action, "error", err.Error())
	}
}

func (s *Service) recordRun(ctx context.Context, run pgaudit.OperationRun) {
	if s.audit == nil {
		return
	}
	if err := s.audit.RecordRun(ctx, run); err != nil {
		slog.Error("record operation run", "kind", run.Kind, "error", err.Error())
	}
}

func validateInput(in models.ParcelInput) error {
	if in.Client == "" || in.Address == "" || in.Phone1 == "" {
		return validationf("missing required fields: client, adresse, tel1")
	}
	return nil
}

func applyInputDefaults(in *models.ParcelInput) {
	if in.Type == "" {
		in.Type = models.TypeSale
	}
	if in.PieceCount <= 0 {
		in.PieceCount = 1
	}
}
