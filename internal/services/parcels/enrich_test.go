package parcels

import (
	"context"
	"testing"

	"github.com/colisdesk/colisdesk/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestEnrich_OverlaysByCode(t *testing.T) {
	rest := &fakeRest{enrichments: []models.Enrichment{
		{Code: "CB000001", CourierName: "Karim", CourierPhone: "50111222", DeliveryFee: 7},
		{Code: "CB000002", LastAnomaly: "client injoignable"},
	}}
	svc := New(newFakeSoap(nil), rest)

	records := []models.Parcel{
		{Code: "CB000001", Client: "Ahmed"},
		{Code: "CB000002", Client: "Fatma"},
		{Code: "CB000003", Client: "Ali"},
	}
	got := svc.Enrich(context.Background(), records)
	require.Len(t, got, 3)
	require.Equal(t, "Karim", got[0].CourierName)
	require.Equal(t, models.FlexFloat(7), got[0].DeliveryFee)
	require.Equal(t, "client injoignable", got[1].LastAnomaly)
	require.Empty(t, got[2].CourierName)

	// One batch call, semicolon joining happens in the REST client.
	require.Len(t, rest.lookupCalls, 1)
	require.Equal(t, []string{"CB000001", "CB000002", "CB000003"}, rest.lookupCalls[0])
}

func TestEnrich_ExistingFieldsWin(t *testing.T) {
	rest := &fakeRest{enrichments: []models.Enrichment{
		{Code: "CB000001", CourierName: "Karim", PickupDate: "2026-03-02"},
	}}
	svc := New(newFakeSoap(nil), rest)

	records := []models.Parcel{{Code: "CB000001", CourierName: "Sami"}}
	got := svc.Enrich(context.Background(), records)
	require.Equal(t, "Sami", got[0].CourierName)
	require.Equal(t, "2026-03-02", got[0].PickupDate)
}

func TestEnrich_LookupFailureReturnsOriginals(t *testing.T) {
	rest := &fakeRest{lookupErr: errors.New("rest down")}
	svc := New(newFakeSoap(nil), rest)

	records := []models.Parcel{{Code: "CB000001", Client: "Ahmed"}}
	got := svc.Enrich(context.Background(), records)
	require.Equal(t, records, got)
}

func TestEnrich_EmptyLookupLeavesRecordsUntouched(t *testing.T) {
	rest := &fakeRest{}
	svc := New(newFakeSoap(nil), rest)

	records := []models.Parcel{{Code: "CB000001", Client: "Ahmed"}}
	got := svc.Enrich(context.Background(), records)
	require.Equal(t, records, got)
}

func TestEnrich_SkipsRecordsWithoutCode(t *testing.T) {
	rest := &fakeRest{}
	svc := New(newFakeSoap(nil), rest)

	records := []models.Parcel{{Client: "Sans code"}}
	got := svc.Enrich(context.Background(), records)
	require.Equal(t, records, got)
	require.Empty(t, rest.lookupCalls)
}

func TestEnrichmentFor_ErrorEnvelope(t *testing.T) {
	// Error envelopes from the lookup surface as errors to EnrichmentFor...
	svc := New(newFakeSoap(nil), &restErrEnvelope{})
	_, err := svc.EnrichmentFor(context.Background(), []string{"CB000001"})
	require.Error(t, err)

	// ...but Enrich swallows them.
	records := []models.Parcel{{Code: "CB000001"}}
	require.Equal(t, records, svc.Enrich(context.Background(), records))
}

type restErrEnvelope struct{ fakeRest }

func (r *restErrEnvelope) ListByCodes(context.Context, []string) (any, error) {
	return errorEnv("E2", "compte suspendu"), nil
}
