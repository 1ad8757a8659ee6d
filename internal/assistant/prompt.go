package assistant

import (
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wholesale-pos/wholesale-pos/internal/catalog"
	"github.com/wholesale-pos/wholesale-pos/internal/ledger"
)

// recentSales bounds how much sales history goes into a prompt.
const recentSales = 20

// SystemInstruction frames the model as the store's assistant.
const SystemInstruction = `You are a helpful AI assistant for a wholesale store manager.
You help with analyzing stock levels, suggesting pricing strategies, identifying sales trends, and writing marketing descriptions.
Keep answers concise and practical. The currency is Indian Rupee (INR, ₹).`

var printer = message.NewPrinter(language.English)

// BuildPrompt renders the inventory and recent sales as plain text followed
// by the operator's question. Sales must be newest first.
func BuildPrompt(query string, products []catalog.Product, sales []ledger.Sale) string {
	var b strings.Builder
	b.WriteString("Current inventory:\n")
	if len(products) == 0 {
		b.WriteString("(no products)\n")
	}
	for _, p := range products {
		b.WriteString(printer.Sprintf("- %s (%s): Stock %d, Buy %s, Sell %s\n",
			p.Name, p.Category, p.Stock, rupees(p.WholesalePrice), rupees(p.RetailPrice)))
	}

	b.WriteString("\nRecent sales (newest first):\n")
	if len(sales) == 0 {
		b.WriteString("(no sales yet)\n")
	}
	for i, s := range sales {
		if i == recentSales {
			break
		}
		b.WriteString(printer.Sprintf("- %s, Total %s, Items: %d\n",
			s.Date.UTC().Format(time.DateOnly), rupees(s.TotalAmount), len(s.Items)))
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(strings.TrimSpace(query))
	return b.String()
}

func rupees(v float64) string {
	if v == math.Trunc(v) {
		return printer.Sprintf("₹%d", int64(v))
	}
	return printer.Sprintf("₹%.2f", v)
}
