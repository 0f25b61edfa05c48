package common

import (
	"fmt"
	"strings"

	"oxapay-wallet-go/internal/models"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100

	dateLayout = "2006-01-02 15:04:05"
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// FormatAmount renders whole currency units
func FormatAmount(amount int64) string {
	return fmt.Sprintf("%d$", amount)
}

// ShortId truncates long ids for display
func ShortId(id string) string {
	if id == "" {
		return "none"
	}
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

// FormatEntry renders one history line
func FormatEntry(entry models.TransactionEntry) string {
	line := fmt.Sprintf("%-12s %+8d  %s -> %s  %s",
		entry.Type,
		entry.SignedAmount(),
		FormatAmount(entry.BalanceBefore),
		FormatAmount(entry.BalanceAfter),
		entry.Date.Format(dateLayout))

	switch {
	case entry.OrderId != "":
		line += "  order " + ShortId(entry.OrderId)
	case entry.Counterparty != "":
		line += "  with " + entry.Counterparty
	}
	return line
}
