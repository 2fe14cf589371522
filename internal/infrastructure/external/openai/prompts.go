package openai

import (
	"fmt"
	"strings"
)

const receiptSystemPrompt = "You are a household finance assistant that reads shopping receipts. " +
	"You extract structured data with perfect accuracy and always respond with a single valid JSON object, no extra text."

// buildReceiptPrompt asks for the extraction JSON shape, constraining
// category and purpose choices to the space's known names so results line
// up with existing entities
func buildReceiptPrompt(categories, purposes []string) string {
	var b strings.Builder

	b.WriteString("Analyze this receipt and extract:\n")
	b.WriteString("1. supplier_name: the merchant name\n")
	b.WriteString("2. date: transaction date, format YYYY-MM-DD\n")
	b.WriteString("3. total_amount: numeric total\n")
	b.WriteString("4. currency: ISO code such as USD or CNY\n")
	b.WriteString("5. tax: numeric tax amount, 0 if none shown\n")
	b.WriteString("6. payment_account: the card or account used, including trailing digits, if shown\n")
	b.WriteString("7. supplier_tax_number, supplier_phone, supplier_address: if printed on the receipt\n")
	b.WriteString("8. items: every line item with name, category_name, purpose, price, is_asset, confidence\n")

	if len(categories) > 0 {
		fmt.Fprintf(&b, "\nChoose category_name from: [%s]. ", strings.Join(categories, ", "))
		b.WriteString("Only invent a new category when none of these fit.\n")
	}
	if len(purposes) > 0 {
		fmt.Fprintf(&b, "Choose purpose from: [%s].\n", strings.Join(purposes, ", "))
	}

	b.WriteString(`
Also report:
- confidence: your overall confidence in this extraction, 0 to 1
- image_quality: {"clarity": 0-1, "completeness": 0-1}
- data_consistency: {"items_sum": number, "items_sum_matches_total": bool, "missing_items": bool}

Respond with exactly this JSON shape and nothing else:
{
  "supplier_name": "Merchant",
  "date": "2024-03-13",
  "total_amount": 123.45,
  "currency": "USD",
  "tax": 5.67,
  "payment_account": "Visa ****1234",
  "items": [
    {"name": "Item", "category_name": "Grocery", "purpose": "Home", "price": 12.99, "is_asset": false, "confidence": 0.9}
  ],
  "confidence": 0.9,
  "image_quality": {"clarity": 0.9, "completeness": 0.95},
  "data_consistency": {"items_sum": 117.78, "items_sum_matches_total": true, "missing_items": false}
}`)

	return b.String()
}
