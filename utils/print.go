package utils

import (
	"fmt"
	"log"

	"github.com/fatih/color"

	"github.com/bulkmart/go-aggregator/request"
	"github.com/bulkmart/go-aggregator/types"
)

func PrintResponseDetails(status int, details string) {
	var c *color.Color
	switch true {
	case request.IsTempError(status):
		c = color.New(color.FgHiRed)
	case request.IsSuccess(status):
		c = color.New(color.FgHiGreen)
	default:
		c = color.New(color.FgHiBlue)
	}

	formatLog := c.SprintFunc()
	log.Println(formatLog(details))
}

// PrintListings dumps a result set to the console in test mode
func PrintListings(items []*types.ExternalListing) {
	title := color.New(color.FgHiGreen).SprintFunc()
	field := color.New(color.FgHiBlue).SprintFunc()

	for i, l := range items {
		log.Printf("%s %s\n", title(fmt.Sprintf("[%d] %s", i+1, l.Title)), field(l.URL))
		line := fmt.Sprintf("    platform: %s", l.Platform)
		if l.PriceMin != nil {
			line += fmt.Sprintf(", price: %.2f", *l.PriceMin)
			if l.PriceMax != nil && *l.PriceMax != *l.PriceMin {
				line += fmt.Sprintf("-%.2f", *l.PriceMax)
			}
			if l.Currency != "" {
				line += " " + l.Currency
			}
		}
		if l.MoqValue != nil {
			line += fmt.Sprintf(", moq: %d", *l.MoqValue)
		}
		if l.StoreName != "" {
			line += fmt.Sprintf(", store: %s", l.StoreName)
		}
		log.Println(line)
	}
	log.Printf("TEST_MODE: %d listings\n", len(items))
}
