package parcels

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/colisdesk/colisdesk/internal/broker/messages"
	"github.com/colisdesk/colisdesk/internal/integrations/colissimo/envelope"
	"github.com/colisdesk/colisdesk/internal/integrations/colissimo/restv2"
	"github.com/colisdesk/colisdesk/internal/models"
	"github.com/colisdesk/colisdesk/internal/storage/pgaudit"
	"github.com/pkg/errors"
)

const bulkRateKey = "ratelimit:bulk"

// BulkResult is the per-item tally of a bulk mutation. The operation never
// aborts on a failed item; failed codes are reported back instead.
type BulkResult struct {
	Succeeded   int      `json:"succeeded"`
	Failed      int      `json:"failed"`
	FailedCodes []string `json:"failedCodes,omitempty"`
}

// ImportResult mirrors the provider's AjoutVMultiple report.
type ImportResult struct {
	Created      int              `json:"created"`
	Total        int              `json:"total"`
	CreatedCodes []string         `json:"createdCodes,omitempty"`
	Errors       []map[string]any `json:"errors,omitempty"`
	Partial      bool             `json:"partial"`
}

// BulkDelete removes each parcel in turn.
func (s *Service) BulkDelete(ctx context.Context, codes []string) (BulkResult, error) {
	res, err := s.applyBulk(ctx, codes, func(ctx context.Context, code string) error {
		raw, err := s.soap.DeleteParcel(ctx, code)
		if err != nil {
			return err
		}
		return envelope.Resolve(raw).Err()
	})
	if err != nil {
		return res, err
	}
	s.recordRun(ctx, pgaudit.OperationRun{
		Kind:      pgaudit.KindBulkDelete,
		Total:     len(codes),
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
	})
	s.publish(ctx, messages.ParcelChanged{Action: messages.ActionDeleted})
	return res, nil
}

// BulkChangeStatus sets etat on each parcel. The provider has no partial
// update, so each item is fetched first and written back with the new status.
func (s *Service) BulkChangeStatus(ctx context.Context, codes []string, status string) (BulkResult, error) {
	if status == "" {
		return BulkResult{}, validationf("status is required")
	}
	res, err := s.applyBulk(ctx, codes, func(ctx context.Context, code string) error {
		p, err := s.Get(ctx, code)
		if err != nil {
			return err
		}
		in := inputFromParcel(p)
		in.Status = status
		raw, err := s.soap.UpdateParcel(ctx, in)
		if err != nil {
			return err
		}
		return envelope.Resolve(raw).Err()
	})
	if err != nil {
		return res, err
	}
	s.recordRun(ctx, pgaudit.OperationRun{
		Kind:      pgaudit.KindBulkStatus,
		Total:     len(codes),
		Succeeded: res.Succeeded,
		Failed:    res.Failed,
		Detail:    status,
	})
	s.publish(ctx, messages.ParcelChanged{Action: messages.ActionStatusSet, Status: status})
	return res, nil
}

// applyBulk runs fn over the codes one by one. A per-item failure is counted
// and the loop moves on; only a cancelled context stops it early.
func (s *Service) applyBulk(ctx context.Context, codes []string, fn func(ctx context.Context, code string) error) (BulkResult, error) {
	var res BulkResult
	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s.throttle(ctx)
		if err := fn(ctx, code); err != nil {
			slog.Warn("bulk item failed", "code", code, "error", err.Error())
			res.Failed++
			res.FailedCodes = append(res.FailedCodes, code)
			continue
		}
		res.Succeeded++
	}
	return res, nil
}

// throttle paces provider calls when a limiter is wired. The provider bans
// accounts that hammer the mutation endpoints.
func (s *Service) throttle(ctx context.Context) {
	if s.rl == nil || s.bulkRatePerMin <= 0 {
		return
	}
	for {
		allowed, _, err := s.rl.Allow(ctx, bulkRateKey, s.bulkRatePerMin, time.Minute)
		if err != nil || allowed {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// BulkImport creates up to restv2.MaxBulkCreate parcels in one provider call.
func (s *Service) BulkImport(ctx context.Context, items []models.ParcelInput) (ImportResult, error) {
	if len(items) == 0 {
		return ImportResult{}, validationf("no items to import")
	}
	if len(items) > restv2.MaxBulkCreate {
		return ImportResult{}, validationf("at most %d items per import, got %d", restv2.MaxBulkCreate, len(items))
	}
	for i, in := range items {
		if err := validateInput(in); err != nil {
			return ImportResult{}, validationf("item %d: %v", i+1, err)
		}
		applyInputDefaults(&items[i])
	}

	raw, err := s.rest.BulkCreate(ctx, items)
	if err != nil {
		return ImportResult{}, errors.Wrap(err, "bulk create")
	}
	out := envelope.Resolve(raw)
	if err := out.Err(); err != nil {
		return ImportResult{}, err
	}

	res := decodeImportResult(out)
	s.recordRun(ctx, pgaudit.OperationRun{
		Kind:      pgaudit.KindImport,
		Total:     res.Total,
		Succeeded: res.Created,
		Failed:    res.Total - res.Created,
	})
	s.publish(ctx, messages.ParcelChanged{Action: messages.ActionBulkImport})
	return res, nil
}

func decodeImportResult(out envelope.Outcome) ImportResult {
	res := ImportResult{Partial: out.Kind == envelope.KindPartial}
	m, ok := envelope.Unwrap(out.Content).(map[string]any)
	if !ok {
		return res
	}
	b, err := json.Marshal(m)
	if err != nil {
		return res
	}
	var report struct {
		Created int              `json:"nbCrees"`
		Total   int              `json:"nbTotal"`
		Codes   []string         `json:"lsCrees"`
		Errors  []map[string]any `json:"lsErreurs"`
	}
	if err := json.Unmarshal(b, &report); err != nil {
		return res
	}
	res.Created = report.Created
	res.Total = report.Total
	res.CreatedCodes = report.Codes
	res.Errors = report.Errors
	return res
}

// ValidatePickup asks the provider to schedule the pending parcels and
// returns the manifest URL.
func (s *Service) ValidatePickup(ctx context.Context) (string, error) {
	raw, err := s.rest.RequestPickup(ctx)
	if err != nil {
		return "", errors.Wrap(err, "request pickup")
	}
	out := envelope.Resolve(raw)
	if err := out.Err(); err != nil {
		return "", err
	}
	url, _ := envelope.Unwrap(out.Content).(string)

	s.recordRun(ctx, pgaudit.OperationRun{Kind: pgaudit.KindPickup, Succeeded: 1, Total: 1, Detail: url})
	s.publish(ctx, messages.ParcelChanged{Action: messages.ActionPickup})
	return url, nil
}

func inputFromParcel(p models.Parcel) models.ParcelInput {
	return models.ParcelInput{
		Code:        p.Code,
		Reference:   p.Reference,
		Client:      p.Client,
		Address:     p.Address,
		City:        p.City,
		Province:    p.Province,
		Phone1:      p.Phone1,
		Phone2:      p.Phone2,
		Designation: p.Designation,
		Price:       p.Price,
		PieceCount:  p.PieceCount,
		Type:        p.Type,
		Comment:     p.Comment,
		Exchange:    p.Exchange,
		CODAmount:   p.CODAmount,
		Weight:      p.Weight,
		Status:      p.Status,
	}
}
