package store

import (
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/vouchershop/internal/model"
)

// TimeLayout is the cell format for timestamps across all tables.
const TimeLayout = "2006-01-02 15:04:05"

// codesSeparator joins a category's code pool into one cell.
const codesSeparator = "\n"

var tierColumns = map[model.Tier]string{
	model.Tier1:      "Price1",
	model.Tier2:      "Price2",
	model.Tier3:      "Price3",
	model.Tier4:      "Price4",
	model.Tier5:      "Price5",
	model.Tier10:     "Price10",
	model.Tier20Plus: "Price20Plus",
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func joinCodes(codes []string) string {
	return strings.Join(codes, codesSeparator)
}

func splitCodes(cell string) []string {
	if cell == "" {
		return nil
	}
	parts := strings.Split(cell, codesSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func userFromRow(r Row) model.User {
	return model.User{
		ID:       r["UserID"],
		Name:     r["Name"],
		JoinedAt: parseTime(r["JoinedAt"]),
		Status:   model.UserStatus(r["Status"]),
		Verified: strings.EqualFold(r["Verified"], "Yes"),
	}
}

func userToValues(u model.User) []string {
	verified := "No"
	if u.Verified {
		verified = "Yes"
	}
	return []string{u.ID, u.Name, formatTime(u.JoinedAt), string(u.Status), verified}
}

func categoryFromRow(r Row) model.Category {
	value, _ := strconv.Atoi(r["Value"])
	stock, _ := strconv.Atoi(r["Stock"])

	prices := model.EmptyPriceTable()
	for tier, col := range tierColumns {
		cell, ok := r[col]
		if !ok || strings.TrimSpace(cell) == "" {
			continue
		}
		if p, err := strconv.ParseFloat(cell, 64); err == nil {
			prices.Set(tier, p)
		}
	}

	return model.Category{
		ID:     r["CategoryID"],
		Value:  value,
		Prices: prices,
		Stock:  stock,
		Codes:  splitCodes(r["VoucherCodes"]),
	}
}

func categoryToValues(c model.Category) []string {
	values := []string{c.ID, strconv.Itoa(c.Value)}
	for _, col := range CategoriesHeader[2:9] {
		values = append(values, tierCell(c.Prices, col))
	}
	return append(values, strconv.Itoa(c.Stock), joinCodes(c.Codes))
}

func categoryToPatch(c model.Category) map[string]string {
	patch := map[string]string{
		"Value":        strconv.Itoa(c.Value),
		"Stock":        strconv.Itoa(c.Stock),
		"VoucherCodes": joinCodes(c.Codes),
	}
	for _, col := range tierColumns {
		patch[col] = ""
	}
	for tier, col := range tierColumns {
		if p, ok := c.Prices.Get(tier); ok {
			patch[col] = formatMoney(p)
		}
	}
	return patch
}

func tierCell(prices model.PriceTable, column string) string {
	for tier, col := range tierColumns {
		if col != column {
			continue
		}
		if p, ok := prices.Get(tier); ok {
			return formatMoney(p)
		}
		return ""
	}
	return ""
}

func orderFromRow(r Row) model.Order {
	qty, _ := strconv.Atoi(r["Quantity"])
	total, _ := strconv.ParseFloat(r["Total"], 64)
	return model.Order{
		ID:         r["OrderID"],
		UserID:     r["UserID"],
		UserName:   r["UserName"],
		CategoryID: r["CategoryID"],
		Quantity:   qty,
		Total:      total,
		UTR:        r["UTR"],
		Status:     model.OrderStatus(r["Status"]),
		Delivered:  splitCodes(r["VoucherCodeDelivered"]),
		CreatedAt:  parseTime(r["CreatedAt"]),
	}
}

func orderToValues(o model.Order) []string {
	return []string{
		o.ID, o.UserID, o.UserName, o.CategoryID, strconv.Itoa(o.Quantity),
		formatMoney(o.Total), o.UTR, string(o.Status),
		joinCodes(o.Delivered), formatTime(o.CreatedAt),
	}
}

func logToValues(e model.LogEntry) []string {
	return []string{formatTime(e.Timestamp), e.UserID, e.Action, e.Details}
}
