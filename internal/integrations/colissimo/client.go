package colissimo

import (
	"context"

	"github.com/colisdesk/colisdesk/internal/models"
)

// SoapClient is boundary A: the provider's SOAP v1 API (list/CRUD/reference
// data). Every method returns the raw decoded payload; callers push it
// through the envelope package because the shape varies per operation and
// per provider release.
type SoapClient interface {
	ListParcels(ctx context.Context, page int) (any, error)
	GetParcel(ctx context.Context, code string) (any, error)
	CreateParcel(ctx context.Context, in models.ParcelInput) (any, error)
	UpdateParcel(ctx context.Context, in models.ParcelInput) (any, error)
	DeleteParcel(ctx context.Context, code string) (any, error)
	ListProvinces(ctx context.Context) (any, error)
	GetLabelPDF(ctx context.Context, code string) (string, error)
}

// RestClient is boundary B: the provider's REST API used for enrichment,
// bulk create (max 50 per call) and pickup validation. Credentials travel
// in every request body; there is no session.
type RestClient interface {
	ListByCodes(ctx context.Context, codes []string) (any, error)
	RequestPickup(ctx context.Context) (any, error)
	BulkCreate(ctx context.Context, items []models.ParcelInput) (any, error)
}
