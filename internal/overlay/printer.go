package overlay

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// newPrinter formats numbers with English digit grouping.
func newPrinter() *message.Printer {
	return message.NewPrinter(language.English)
}
