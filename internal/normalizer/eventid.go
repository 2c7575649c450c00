package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"pixel-relay/internal/models"
)

// eventIDVersion tags the derivation algorithm. It is hashed along with the
// identity fields so a future v3 cannot collide with v2 ids.
const eventIDVersion = "v2"

// EventID derives the Canonical Event ID from the event's logical identity:
// order id (falling back to checkout token), event name, shop domain, the
// sorted normalized item ids with quantities, and the nonce. Identical logical
// events (retries, duplicate webhook fires) always produce the same id.
func EventID(ev *models.RawEvent, items []models.Item) string {
	orderKey := ev.Data.OrderID
	if orderKey == "" {
		orderKey = ev.Data.CheckoutToken
	}

	itemKeys := make([]string, len(items))
	for i, it := range items {
		itemKeys[i] = fmt.Sprintf("%s:%d", it.ID, it.Quantity)
	}
	sort.Strings(itemKeys)

	h := sha256.New()
	h.Write([]byte(strings.Join([]string{
		eventIDVersion,
		orderKey,
		ev.EventName,
		ev.ShopDomain,
		strings.Join(itemKeys, ","),
		ev.Nonce,
	}, "|")))

	return fmt.Sprintf("evt_%s_%s", eventIDVersion, hex.EncodeToString(h.Sum(nil))[:32])
}
