package validator

import (
	"testing"
	"time"

	"pixel-relay/internal/models"

	"github.com/stretchr/testify/assert"
)

func baseEvent(name string) *models.RawEvent {
	return &models.RawEvent{
		EventName:  name,
		Timestamp:  time.Now(),
		ShopDomain: "demo.myshopify.com",
	}
}

func floatPtr(v float64) *models.FlexNumber {
	f := models.FlexNumber(v)
	return &f
}

func TestValidateCheckoutCompletedMissingValueAndCurrency(t *testing.T) {
	ev := baseEvent(models.EventCheckoutCompleted)

	res := Validate(ev)

	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 2)
}

func TestValidateCheckoutCompletedEmptyItemsIsWarning(t *testing.T) {
	ev := baseEvent(models.EventCheckoutCompleted)
	ev.Data.Value = floatPtr(42)
	ev.Data.Currency = "USD"

	res := Validate(ev)

	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Len(t, res.Warnings, 1)
}

func TestValidateMissingEnvelopeFields(t *testing.T) {
	res := Validate(&models.RawEvent{})

	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 3)
}

func TestValidateUnknownEventName(t *testing.T) {
	ev := baseEvent("cart_abandoned")

	res := Validate(ev)

	assert.False(t, res.Valid)
}

func TestValidatePageViewedNeedsNoMonetaryData(t *testing.T) {
	ev := baseEvent(models.EventPageViewed)

	res := Validate(ev)

	assert.True(t, res.Valid)
	assert.Empty(t, res.Warnings)
}

func TestValidateOtherEventsWarnOnMissingValue(t *testing.T) {
	ev := baseEvent(models.EventProductViewed)

	res := Validate(ev)

	assert.True(t, res.Valid)
	assert.Len(t, res.Warnings, 2) // missing value and currency
}

func TestValidateItemWithoutID(t *testing.T) {
	ev := baseEvent(models.EventProductAddedToCart)
	ev.Data.Value = floatPtr(10)
	ev.Data.Currency = "USD"
	ev.Data.Items = []models.RawItem{{Name: "Sticker"}}

	res := Validate(ev)

	assert.True(t, res.Valid)
	assert.Len(t, res.Warnings, 1)
}

func TestItemIDPriority(t *testing.T) {
	item := &models.RawItem{
		VariantID:      "v1",
		VariantIDSnake: "v2",
		ProductID:      "p1",
		ID:             "raw",
	}
	assert.Equal(t, "v1", ItemID(item))

	item.VariantID = ""
	assert.Equal(t, "v2", ItemID(item))

	item.VariantIDSnake = ""
	assert.Equal(t, "p1", ItemID(item))

	item.ProductID = ""
	assert.Equal(t, "raw", ItemID(item))
}
