// Package pricing computes unit prices, line totals, discounts and GST for
// cart items. Every function is pure over its inputs.
package pricing

import (
	"time"

	"activity-storefront/internal/models"

	"github.com/shopspring/decimal"
)

// GSTRate is the fixed Australian goods-and-services tax rate.
var GSTRate = decimal.RequireFromString("0.10")

var one = decimal.NewFromInt(1)

// Round rounds an amount to cents.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// IsEarlyBirdEligible is true when the product defines both an early-bird
// rate and a deadline, and now is on or before the deadline.
func IsEarlyBirdEligible(p *models.Product, now time.Time) bool {
	if p.Pricing.EarlyBirdDiscount == nil || p.Pricing.EarlyBirdDeadline == nil {
		return false
	}
	return !now.After(*p.Pricing.EarlyBirdDeadline)
}

// CalculatePrice returns the unit price after discounts, rounded to cents.
// Discounts compound: base, then early-bird, then sibling.
func CalculatePrice(p *models.Product, isEarlyBird, hasSiblingDiscount bool) decimal.Decimal {
	price := p.Pricing.BasePrice
	if isEarlyBird && p.Pricing.EarlyBirdDiscount != nil {
		price = price.Mul(one.Sub(clampRate(*p.Pricing.EarlyBirdDiscount)))
	}
	if hasSiblingDiscount && p.Pricing.SiblingDiscount != nil {
		price = price.Mul(one.Sub(clampRate(*p.Pricing.SiblingDiscount)))
	}
	if price.IsNegative() {
		return decimal.Zero
	}
	return Round(price)
}

// clampRate keeps a rate inside [0,1] so a bad catalog row cannot produce a
// negative or inflated price.
func clampRate(r decimal.Decimal) decimal.Decimal {
	if r.IsNegative() {
		return decimal.Zero
	}
	if r.GreaterThan(one) {
		return one
	}
	return r
}

// AddOnTotal sums price*quantity over the selected add-ons.
func AddOnTotal(addOns []models.SelectedAddOn) decimal.Decimal {
	total := decimal.Zero
	for _, a := range addOns {
		if a.Quantity <= 0 {
			continue
		}
		total = total.Add(a.AddOn.Price.Mul(decimal.NewFromInt(int64(a.Quantity))))
	}
	return total
}

// ItemTotal is pricePerItem*quantity plus the add-on cost.
func ItemTotal(pricePerItem decimal.Decimal, quantity int, addOns []models.SelectedAddOn) decimal.Decimal {
	return Round(pricePerItem.Mul(decimal.NewFromInt(int64(quantity))).Add(AddOnTotal(addOns)))
}

// Reprice recomputes the unit price from the item's discount flags and then
// the line total.
func Reprice(item *models.EnhancedCartItem) {
	item.PricePerItem = CalculatePrice(&item.Product, item.IsEarlyBird, item.HasSiblingDiscount)
	item.TotalPrice = ItemTotal(item.PricePerItem, item.Quantity, item.AddOns)
}

// ApplySiblingDiscounts marks every item whose date+time-slot key is shared
// with at least one other item as sibling-eligible, and clears the flag on
// items that no longer share a slot. The flag is a bool, so an item already
// flagged is never discounted twice. Changed items are repriced; their ids
// are returned.
func ApplySiblingDiscounts(items []models.EnhancedCartItem) []string {
	groups := make(map[string]int)
	for i := range items {
		if key := items[i].ScheduleKey(); key != "" {
			groups[key]++
		}
	}

	var changed []string
	for i := range items {
		item := &items[i]
		key := item.ScheduleKey()
		eligible := key != "" && groups[key] > 1 && item.Product.Pricing.SiblingDiscount != nil
		if item.HasSiblingDiscount != eligible {
			item.HasSiblingDiscount = eligible
			Reprice(item)
			changed = append(changed, item.ID)
		}
	}

	return changed
}

// GST returns the tax on subtotal, rounded to cents.
func GST(subtotal decimal.Decimal) decimal.Decimal {
	return Round(subtotal.Mul(GSTRate))
}

// Summarize builds the derived cart summary. Discount is the saving against
// base prices.
func Summarize(items []models.EnhancedCartItem) models.CartSummary {
	subtotal := decimal.Zero
	discount := decimal.Zero
	summary := models.CartSummary{}

	for i := range items {
		item := &items[i]
		subtotal = subtotal.Add(item.TotalPrice)
		saving := item.Product.Pricing.BasePrice.Sub(item.PricePerItem).Mul(decimal.NewFromInt(int64(item.Quantity)))
		if saving.IsPositive() {
			discount = discount.Add(saving)
		}
		summary.ItemCount += item.Quantity
		summary.StudentCount += len(item.Students)
	}

	summary.Subtotal = Round(subtotal)
	summary.Discount = Round(discount)
	summary.Tax = GST(summary.Subtotal)
	summary.Total = summary.Subtotal.Add(summary.Tax)
	return summary
}

// ToMinorUnits converts a dollar amount to integer cents for the payment gateway.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return Round(amount).Shift(2).IntPart()
}

// FromMinorUnits converts integer cents to dollars.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
