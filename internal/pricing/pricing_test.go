package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tshirtQuote() VariantQuote {
	return VariantQuote{
		VariantID: 4012,
		Currency:  "USD",
		Techniques: []TechniquePrice{
			{Key: "dtg", Price: "10.00"},
			{Key: "embroidery", Price: "14.50"},
		},
		Placements: []PlacementPrice{
			{ID: "front", Price: "2.50"},
			{ID: "back", Price: "3.00"},
			{ID: "sleeve_left", Technique: "embroidery", Price: "4.25"},
		},
	}
}

func money(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestPriceCartItems_BaseAndPlacements(t *testing.T) {
	quotes := map[int64]VariantQuote{4012: tshirtQuote()}
	items := []Item{{ID: "i1", VariantID: 4012, Technique: "dtg", Placements: []string{"front", "back"}, Quantity: 2}}

	s := PriceCartItems(items, quotes)

	require.Len(t, s.Items, 1)
	assert.True(t, money(t, "15.50").Equal(s.Items[0].UnitPrice))
	assert.Equal(t, "31.00", FormatMoney(s.Items[0].Total))
	assert.Equal(t, "31.00", FormatMoney(s.Subtotal))
	assert.Empty(t, s.Missing)
}

func TestPriceCartItems_MissingQuoteDegradesToZero(t *testing.T) {
	quotes := map[int64]VariantQuote{4012: tshirtQuote()}
	items := []Item{
		{ID: "known", VariantID: 4012, Technique: "dtg", Placements: []string{"front"}, Quantity: 1},
		{ID: "unknown", VariantID: 999, Technique: "dtg", Placements: []string{"front"}, Quantity: 3},
	}

	s := PriceCartItems(items, quotes)

	require.Len(t, s.Items, 2)
	assert.Equal(t, "0.00", FormatMoney(s.Items[1].Total))
	assert.True(t, s.Items[1].MissingQuote)
	assert.Equal(t, "12.50", FormatMoney(s.Subtotal))
	assert.Equal(t, []string{"unknown"}, s.Missing)
}

func TestPriceCartItems_EmptyQuotes(t *testing.T) {
	items := []Item{{ID: "a", VariantID: 1, Quantity: 1}, {ID: "b", VariantID: 2, Quantity: 1}}

	s := PriceCartItems(items, nil)

	assert.True(t, s.Subtotal.IsZero())
	assert.Equal(t, []string{"a", "b"}, s.Missing)
}

func TestPriceCartItems_TechniqueSelection(t *testing.T) {
	quotes := map[int64]VariantQuote{4012: tshirtQuote()}

	chosen := PriceCartItems([]Item{{ID: "e", VariantID: 4012, Technique: "Embroidery", Quantity: 1}}, quotes)
	assert.Equal(t, "14.50", FormatMoney(chosen.Subtotal))

	assert.Equal(t, "embroidery", chosen.Items[0].Technique)
	assert.True(t, chosen.Items[0].Exact())

	fallback := PriceCartItems([]Item{{ID: "x", VariantID: 4012, Technique: "sublimation", Quantity: 1}}, quotes)
	assert.Equal(t, "10.00", FormatMoney(fallback.Subtotal))
	assert.Equal(t, "dtg", fallback.Items[0].Technique, "line records the technique it was priced with")
	assert.True(t, fallback.Items[0].TechniqueMismatch)
	assert.False(t, fallback.Items[0].Exact())

	unset := PriceCartItems([]Item{{ID: "u", VariantID: 4012, Quantity: 1}}, quotes)
	assert.Equal(t, "10.00", FormatMoney(unset.Subtotal))
	assert.Equal(t, "dtg", unset.Items[0].Technique)
	assert.False(t, unset.Items[0].TechniqueMismatch)
}

func TestPriceCartItems_NoTechniquesIsNotExact(t *testing.T) {
	quotes := map[int64]VariantQuote{9: {VariantID: 9, Placements: []PlacementPrice{{ID: "front", Price: "3.00"}}}}
	s := PriceCartItems([]Item{{ID: "i", VariantID: 9, Technique: "dtg", Placements: []string{"front"}, Quantity: 1}}, quotes)
	assert.Equal(t, "3.00", FormatMoney(s.Subtotal))
	assert.True(t, s.Items[0].TechniqueMismatch)
	assert.False(t, s.Items[0].Exact())
}

func TestPriceCartItems_PlacementTechniqueMatch(t *testing.T) {
	q := tshirtQuote()
	q.Placements = append(q.Placements,
		PlacementPrice{ID: "front", Technique: "embroidery", Price: "6.00"},
	)
	q.Placements[0].Technique = "dtg"
	quotes := map[int64]VariantQuote{4012: q}

	dtg := PriceCartItems([]Item{{ID: "d", VariantID: 4012, Technique: "dtg", Placements: []string{"front"}}}, quotes)
	assert.Equal(t, "12.50", FormatMoney(dtg.Subtotal))

	emb := PriceCartItems([]Item{{ID: "e", VariantID: 4012, Technique: "embroidery", Placements: []string{"front"}}}, quotes)
	assert.Equal(t, "20.50", FormatMoney(emb.Subtotal))
}

func TestPriceCartItems_UnmatchedPlacementContributesZero(t *testing.T) {
	quotes := map[int64]VariantQuote{4012: tshirtQuote()}
	s := PriceCartItems([]Item{{ID: "i", VariantID: 4012, Technique: "dtg", Placements: []string{"front", "pocket"}, Quantity: 1}}, quotes)

	assert.Equal(t, "12.50", FormatMoney(s.Subtotal))
	assert.Equal(t, []string{"pocket"}, s.Items[0].UnpricedPlacements)
}

func TestPriceCartItems_QuantityDefaultsToOne(t *testing.T) {
	quotes := map[int64]VariantQuote{4012: tshirtQuote()}
	for _, qty := range []int{0, -4} {
		s := PriceCartItems([]Item{{ID: "i", VariantID: 4012, Technique: "dtg", Quantity: qty}}, quotes)
		assert.Equal(t, 1, s.Items[0].Quantity)
		assert.Equal(t, "10.00", FormatMoney(s.Subtotal))
	}
}

func TestPriceCartItems_MalformedPricesCountAsZero(t *testing.T) {
	quotes := map[int64]VariantQuote{7: {
		VariantID:  7,
		Techniques: []TechniquePrice{{Key: "dtg", Price: "n/a"}},
		Placements: []PlacementPrice{{ID: "front", Price: "-3.00"}, {ID: "back", Price: " 1.25 "}},
	}}
	s := PriceCartItems([]Item{{ID: "i", VariantID: 7, Technique: "dtg", Placements: []string{"front", "back"}, Quantity: 2}}, quotes)

	assert.Equal(t, "2.50", FormatMoney(s.Subtotal))
	assert.False(t, s.Subtotal.IsNegative())
}

func TestPriceCartItems_RoundsHalfUp(t *testing.T) {
	quotes := map[int64]VariantQuote{1: {
		VariantID:  1,
		Techniques: []TechniquePrice{{Key: "dtg", Price: "0.335"}},
	}}
	s := PriceCartItems([]Item{{ID: "i", VariantID: 1, Technique: "dtg", Quantity: 1}}, quotes)
	assert.Equal(t, "0.34", FormatMoney(s.Items[0].Total))

	// 0.1 + 0.2 drifts in binary floating point; a thousand of them must not.
	quotes[1] = VariantQuote{VariantID: 1, Techniques: []TechniquePrice{{Key: "dtg", Price: "0.10"}}, Placements: []PlacementPrice{{ID: "front", Price: "0.20"}}}
	items := make([]Item, 0, 1000)
	for i := 0; i < 1000; i++ {
		items = append(items, Item{ID: "x", VariantID: 1, Technique: "dtg", Placements: []string{"front"}, Quantity: 1})
	}
	assert.Equal(t, "300.00", FormatMoney(PriceCartItems(items, quotes).Subtotal))
}

func TestPriceCartItems_QuantityIsMonotonic(t *testing.T) {
	quotes := map[int64]VariantQuote{4012: tshirtQuote()}
	prev := decimal.Zero
	for qty := 1; qty <= 20; qty++ {
		s := PriceCartItems([]Item{{ID: "i", VariantID: 4012, Technique: "dtg", Placements: []string{"front"}, Quantity: qty}}, quotes)
		assert.True(t, s.Items[0].Total.GreaterThan(prev), "qty %d", qty)
		prev = s.Items[0].Total
	}
}

func TestPriceCartItems_RemovingPlacementNeverIncreases(t *testing.T) {
	quotes := map[int64]VariantQuote{4012: tshirtQuote()}
	full := []string{"front", "back", "sleeve_left"}
	before := PriceCartItems([]Item{{ID: "i", VariantID: 4012, Technique: "dtg", Placements: full, Quantity: 3}}, quotes)
	for drop := range full {
		rest := append(append([]string{}, full[:drop]...), full[drop+1:]...)
		after := PriceCartItems([]Item{{ID: "i", VariantID: 4012, Technique: "dtg", Placements: rest, Quantity: 3}}, quotes)
		assert.True(t, after.Subtotal.LessThanOrEqual(before.Subtotal), "dropping %s", full[drop])
	}
}

func TestPriceCartItems_Deterministic(t *testing.T) {
	quotes := map[int64]VariantQuote{4012: tshirtQuote()}
	items := []Item{
		{ID: "a", VariantID: 4012, Technique: "dtg", Placements: []string{"front"}, Quantity: 2},
		{ID: "b", VariantID: 4012, Technique: "embroidery", Placements: []string{"back", "sleeve_left"}, Quantity: 1},
		{ID: "c", VariantID: 5, Quantity: 1},
	}
	first := PriceCartItems(items, quotes)
	for i := 0; i < 5; i++ {
		again := PriceCartItems(items, quotes)
		assert.True(t, first.Subtotal.Equal(again.Subtotal))
		assert.Equal(t, first.Missing, again.Missing)
		for j := range first.Items {
			assert.True(t, first.Items[j].Total.Equal(again.Items[j].Total))
		}
	}
}

func TestVariantIDs(t *testing.T) {
	items := []Item{{VariantID: 9}, {VariantID: 3}, {VariantID: 9}, {VariantID: 1}}
	assert.Equal(t, []int64{1, 3, 9}, VariantIDs(items))
	assert.Empty(t, VariantIDs(nil))
}
