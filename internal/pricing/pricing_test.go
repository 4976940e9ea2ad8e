package pricing

import (
	"testing"
	"time"

	"activity-storefront/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func campProduct(base string) models.Product {
	deadline := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	return models.Product{
		ID:   "camp-1",
		Name: "Robotics Camp",
		Type: models.ProductCamp,
		Pricing: models.Pricing{
			BasePrice:         dec(base),
			EarlyBirdDiscount: ptr(dec("0.15")),
			EarlyBirdDeadline: &deadline,
			SiblingDiscount:   ptr(dec("0.10")),
		},
		Capacity: 20,
		AgeRange: models.AgeRange{Min: 6, Max: 12},
	}
}

func TestCalculatePrice(t *testing.T) {
	p := campProduct("100")

	tests := []struct {
		name    string
		early   bool
		sibling bool
		want    string
	}{
		{"base price", false, false, "100"},
		{"early bird", true, false, "85"},
		{"sibling", false, true, "90"},
		{"both compound early bird first", true, true, "76.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePrice(&p, tt.early, tt.sibling)
			assert.True(t, dec(tt.want).Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestCalculatePrice_RoundsToCents(t *testing.T) {
	p := campProduct("99.99")
	p.Pricing.EarlyBirdDiscount = ptr(dec("0.333"))
	got := CalculatePrice(&p, true, false)
	assert.Equal(t, "66.69", got.StringFixed(2))
	assert.True(t, got.Equal(got.Round(2)))
}

func TestCalculatePrice_NonNegativeAndMonotone(t *testing.T) {
	bases := []string{"0", "0.01", "19.95", "100", "2500"}
	rates := []string{"0", "0.05", "0.5", "0.99", "1"}

	for _, b := range bases {
		for _, eb := range rates {
			for _, sib := range rates {
				p := campProduct(b)
				p.Pricing.EarlyBirdDiscount = ptr(dec(eb))
				p.Pricing.SiblingDiscount = ptr(dec(sib))

				none := CalculatePrice(&p, false, false)
				early := CalculatePrice(&p, true, false)
				sibling := CalculatePrice(&p, false, true)
				both := CalculatePrice(&p, true, true)

				for _, v := range []decimal.Decimal{none, early, sibling, both} {
					require.False(t, v.IsNegative(), "base=%s eb=%s sib=%s", b, eb, sib)
				}
				assert.True(t, early.LessThanOrEqual(none))
				assert.True(t, sibling.LessThanOrEqual(none))
				assert.True(t, both.LessThanOrEqual(early))
				assert.True(t, both.LessThanOrEqual(sibling))
			}
		}
	}
}

func TestCalculatePrice_IgnoresFlagsWithoutRates(t *testing.T) {
	p := models.Product{Pricing: models.Pricing{BasePrice: dec("42")}}
	assert.True(t, dec("42").Equal(CalculatePrice(&p, true, true)))
}

func TestIsEarlyBirdEligible(t *testing.T) {
	p := campProduct("100")
	deadline := *p.Pricing.EarlyBirdDeadline

	assert.True(t, IsEarlyBirdEligible(&p, deadline.Add(-time.Hour)))
	assert.True(t, IsEarlyBirdEligible(&p, deadline), "deadline day itself is eligible")
	assert.False(t, IsEarlyBirdEligible(&p, deadline.Add(time.Second)))

	noDeadline := campProduct("100")
	noDeadline.Pricing.EarlyBirdDeadline = nil
	assert.False(t, IsEarlyBirdEligible(&noDeadline, deadline.Add(-time.Hour)))

	noRate := campProduct("100")
	noRate.Pricing.EarlyBirdDiscount = nil
	assert.False(t, IsEarlyBirdEligible(&noRate, deadline.Add(-time.Hour)))
}

func TestItemTotal(t *testing.T) {
	addOns := []models.SelectedAddOn{
		{AddOn: models.AddOn{ID: "lunch", Price: dec("12.50")}, Quantity: 2},
		{AddOn: models.AddOn{ID: "shirt", Price: dec("20")}, Quantity: 0},
	}
	got := ItemTotal(dec("85"), 3, addOns)
	assert.True(t, dec("280").Equal(got), "got %s", got)
}

func newItem(id, date, slot string) models.EnhancedCartItem {
	item := models.EnhancedCartItem{
		ID:               id,
		Product:          campProduct("100"),
		Quantity:         1,
		SelectedDate:     date,
		SelectedTimeSlot: slot,
	}
	Reprice(&item)
	return item
}

func TestApplySiblingDiscounts(t *testing.T) {
	items := []models.EnhancedCartItem{
		newItem("a", "2026-12-14", "09:00-15:00"),
		newItem("b", "2026-12-14", "09:00-15:00"),
		newItem("c", "2026-12-15", "09:00-15:00"),
		newItem("d", "", ""),
	}

	changed := ApplySiblingDiscounts(items)
	assert.ElementsMatch(t, []string{"a", "b"}, changed)

	assert.True(t, items[0].HasSiblingDiscount)
	assert.True(t, items[1].HasSiblingDiscount)
	assert.False(t, items[2].HasSiblingDiscount)
	assert.False(t, items[3].HasSiblingDiscount)
	assert.True(t, dec("90").Equal(items[1].PricePerItem))
	assert.True(t, dec("90").Equal(items[0].PricePerItem), "discount applied once, not twice")

	// Re-running is a no-op: already-flagged items are not discounted again.
	assert.Empty(t, ApplySiblingDiscounts(items))
	assert.True(t, dec("90").Equal(items[0].PricePerItem))

	// Moving b away removes the pairing.
	items[1].SelectedDate = "2026-12-16"
	changed = ApplySiblingDiscounts(items)
	assert.ElementsMatch(t, []string{"a", "b"}, changed)
	assert.True(t, dec("100").Equal(items[0].PricePerItem))
	assert.True(t, dec("100").Equal(items[1].PricePerItem))
}

func TestApplySiblingDiscounts_SkipsProductsWithoutRate(t *testing.T) {
	a := newItem("a", "2026-12-14", "10:00")
	b := newItem("b", "2026-12-14", "10:00")
	b.Product.Pricing.SiblingDiscount = nil
	items := []models.EnhancedCartItem{a, b}

	ApplySiblingDiscounts(items)
	assert.True(t, items[0].HasSiblingDiscount)
	assert.False(t, items[1].HasSiblingDiscount)
}

func TestSummarize(t *testing.T) {
	a := newItem("a", "2026-12-14", "09:00-15:00")
	a.Quantity = 2
	a.Students = []models.StudentDetails{{ID: "s1"}, {ID: "s2"}}
	a.AddOns = []models.SelectedAddOn{{AddOn: models.AddOn{Price: dec("5")}, Quantity: 1}}
	Reprice(&a)
	b := newItem("b", "2026-12-20", "09:00-15:00")
	b.IsEarlyBird = true
	Reprice(&b)

	items := []models.EnhancedCartItem{a, b}
	s := Summarize(items)

	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.TotalPrice)
	}
	assert.True(t, sum.Equal(s.Subtotal))
	assert.True(t, s.Subtotal.Add(s.Tax).Equal(s.Total))
	assert.True(t, dec("290").Equal(s.Subtotal), "got %s", s.Subtotal)
	assert.True(t, dec("29").Equal(s.Tax))
	assert.True(t, dec("319").Equal(s.Total))
	assert.True(t, dec("15").Equal(s.Discount))
	assert.Equal(t, 3, s.ItemCount)
	assert.Equal(t, 2, s.StudentCount)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.True(t, s.Total.IsZero())
	assert.Equal(t, 0, s.ItemCount)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(31900), ToMinorUnits(dec("319")))
	assert.Equal(t, int64(1), ToMinorUnits(dec("0.005")))
	assert.True(t, dec("12.34").Equal(FromMinorUnits(1234)))
}
