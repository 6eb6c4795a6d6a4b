package envelope

import (
	"encoding/json"
	"testing"

	"github.com/colisdesk/colisdesk/internal/models"
	"github.com/stretchr/testify/require"
)

func mustJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestUnwrap_BoundedDepth(t *testing.T) {
	// одна обёртка
	v := Unwrap(`{"a":1}`)
	require.Equal(t, map[string]any{"a": float64(1)}, v)

	// двойная обёртка
	v = Unwrap(`"{\"a\":1}"`)
	require.Equal(t, map[string]any{"a": float64(1)}, v)

	// не-JSON строка остаётся строкой
	v = Unwrap("not json at all")
	require.Equal(t, "not json at all", v)

	// не-строка возвращается как есть
	v = Unwrap(float64(5))
	require.Equal(t, float64(5), v)
}

func TestParcels_BareArrayPassthrough(t *testing.T) {
	raw := mustJSON(t, `[{"reference":"R1","client":"A"},{"reference":"R2","client":"B"}]`)
	got := Parcels(raw)
	require.Len(t, got, 2)
	require.Equal(t, "R1", got[0].Reference)
	require.Equal(t, "B", got[1].Client)
}

func TestParcels_SingleBareRecord(t *testing.T) {
	raw := mustJSON(t, `{"reference":"R1","client":"X","tel1":"123"}`)
	got := Parcels(raw)
	require.Len(t, got, 1)
	require.Equal(t, "R1", got[0].Reference)
	require.Equal(t, "123", got[0].Phone1)
}

func TestParcels_DoubleEncodedSuccessEnvelope(t *testing.T) {
	// Сквозной случай из продакшена: ListeColisResult — это JSON-строка,
	// внутри которой success-конверт с colis и nbPages строкой.
	raw := mustJSON(t, `{"ListeColisResult": "{\"result_type\":\"success\",\"result_content\":{\"colis\":[{\"reference\":\"R1\",\"client\":\"X\"}],\"nbPages\":\"1\"}}"}`)
	got := Parcels(raw)
	require.Len(t, got, 1)
	require.Equal(t, "R1", got[0].Reference)
	require.Equal(t, "X", got[0].Client)
}

func TestParcels_CamelCaseDiscriminator(t *testing.T) {
	raw := mustJSON(t, `{"ListResult": "{\"resultType\":\"success\",\"resultContent\":{\"colis\":[{\"reference\":\"R1\",\"client\":\"X\"}],\"nbPages\":\"1\"}}"}`)
	got := Parcels(raw)
	require.Len(t, got, 1)
	require.Equal(t, "R1", got[0].Reference)
}

func TestParcels_ErrorEnvelopeYieldsEmpty(t *testing.T) {
	raw := mustJSON(t, `{"ListeColisResult":{"result_type":"erreur","result_code":"E42","result_content":"acces refuse"}}`)
	require.Empty(t, Parcels(raw))
}

func TestParcels_FallbackScanFindsFirstArray(t *testing.T) {
	raw := mustJSON(t, `{"whatever":{"x":1},"zz_items":[{"reference":"R9","client":"C"}]}`)
	got := Parcels(raw)
	require.Len(t, got, 1)
	require.Equal(t, "R9", got[0].Reference)
}

func TestParcels_UnrecognizedShapeIsEmptyNotError(t *testing.T) {
	require.Empty(t, Parcels(nil))
	require.Empty(t, Parcels("plain text"))
	require.Empty(t, Parcels(mustJSON(t, `{"foo":"bar"}`)))
	require.Empty(t, Parcels(float64(42)))
}

func TestParcels_StringlyTypedNumbers(t *testing.T) {
	raw := mustJSON(t, `[{"reference":"R1","client":"X","prix":"12.5","nb_pieces":"2","echange":0,"cod":7}]`)
	got := Parcels(raw)
	require.Len(t, got, 1)
	require.Equal(t, models.FlexFloat(12.5), got[0].Price)
	require.Equal(t, models.FlexInt(2), got[0].PieceCount)
	require.Equal(t, models.FlexFloat(7), got[0].CODAmount)
}

func TestParcelFrom_DetailShapes(t *testing.T) {
	p, ok := ParcelFrom(mustJSON(t, `{"reference":"R1","client":"X"}`))
	require.True(t, ok)
	require.Equal(t, "R1", p.Reference)

	p, ok = ParcelFrom(mustJSON(t, `{"colis":{"reference":"R2","client":"Y","code_barre":"CB2"}}`))
	require.True(t, ok)
	require.Equal(t, "R2", p.Reference)
	require.Equal(t, "CB2", p.Code)

	_, ok = ParcelFrom(mustJSON(t, `{"foo":"bar"}`))
	require.False(t, ok)

	_, ok = ParcelFrom(nil)
	require.False(t, ok)
}

func TestMetaFrom(t *testing.T) {
	m := MetaFrom(mustJSON(t, `{"colis":[],"nbPages":"3","nbColis":57}`))
	require.Equal(t, 3, m.Pages)
	require.Equal(t, 57, m.Count)

	m = MetaFrom(mustJSON(t, `{"nbPages":"oops"}`))
	require.Equal(t, 0, m.Pages)

	m = MetaFrom("not an object")
	require.Equal(t, PageMeta{}, m)
}

func TestResolve_WrapperPriority(t *testing.T) {
	// <op>Result-суффикс выигрывает у generic-ключей.
	raw := mustJSON(t, `{"RechercherColisResult":{"result_type":"success","result_content":{"colis":[{"reference":"R1","client":"X"}]}},"data":[{"reference":"NOPE","client":"N"}]}`)
	got := Parcels(raw)
	require.Len(t, got, 1)
	require.Equal(t, "R1", got[0].Reference)
}
