package orderapi

import (
	"kitchencart/internal/model"
)

// kitchenStatusOpen is the only kitchen_status value that counts as open.
// Anything else ("closed", "", unknown values) is treated as closed.
const kitchenStatusOpen = "open"

// ToSnapshot converts a backend cart response into the internal snapshot.
//
// The backend populates cart_details on every call; existingCartDetails
// echoes the prior cart only on rejected cross-kitchen mutations. When
// cart_details is empty but existingCartDetails is not, the existing
// lines are the authoritative state and are used instead.
//
// Unit handling: item prices arrive in minor units ("8900"), billing
// amounts in decimal major units ("12.50"). Both normalize to cents.
func ToSnapshot(resp *CartResponse) *model.CartSnapshot {
	items := resp.CartDetails
	if len(items) == 0 && len(resp.ExistingCart) > 0 {
		items = resp.ExistingCart
	}

	lines := make([]model.CartLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, itemToLine(item))
	}

	return &model.CartSnapshot{
		KitchenID:         resp.KitchenID,
		KitchenName:       resp.KitchenName,
		KitchenOpen:       resp.KitchenStatus == kitchenStatusOpen,
		Lines:             lines,
		Billing:           toBilling(resp.BillingDetails),
		DeliveryAddressID: resp.DeliveryAddressID,
	}
}

func itemToLine(item CartItem) model.CartLine {
	return model.CartLine{
		ItemID:            item.ItemID,
		KitchenID:         item.KitchenID,
		Name:              item.ItemName,
		UnitPrice:         model.ParseMinorUnits(item.Price),
		OriginalUnitPrice: model.ParseMinorUnits(item.OriginalPrice),
		DiscountPercent:   item.DiscountPercent,
		DiscountActive:    item.DiscountActive,
		BuyOneGetOneFree:  item.Bogof,
		Quantity:          item.Quantity,
		ImageURL:          item.Image,
		Available:         item.Availability,
		StartTime:         item.StartTime,
		EndTime:           item.EndTime,
	}
}

func toBilling(b BillingBlock) model.Billing {
	return model.Billing{
		Subtotal:    model.ParseCents(b.Subtotal),
		DeliveryFee: model.ParseCents(b.DeliveryFee),
		Tax:         model.ParseCents(b.Tax),
		Total:       model.ParseCents(b.Total),
	}
}
