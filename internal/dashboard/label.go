package dashboard

import (
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const deviceCountKey = "%d devices"

var labelCatalog = newLabelCatalog()

func newLabelCatalog() *catalog.Builder {
	cat := catalog.NewBuilder()
	err := cat.Set(language.English, deviceCountKey,
		plural.Selectf(1, "%d",
			plural.One, "%d device",
			plural.Other, "%d devices"))
	if err != nil {
		panic(err)
	}
	return cat
}

// DeviceCountLabel renders "1 device" or "N devices".
func DeviceCountLabel(n int) string {
	// Printers are not safe for concurrent use; sessions live on many goroutines.
	p := message.NewPrinter(language.English, message.Catalog(labelCatalog))
	return p.Sprintf(deviceCountKey, n)
}
