package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"booking-service/internal/bookingerr"
	"booking-service/internal/models"
)

// hotelCalculator prices a stay: unit price is the nightly rate,
// quantity is the number of nights.
type hotelCalculator struct{}

func (hotelCalculator) Calculate(req Request) (models.QuoteItem, error) {
	unit, ok := req.Params.Decimal("price", "nightly_rate")
	if !ok {
		return models.QuoteItem{}, bookingerr.New(bookingerr.Validation,
			"hotel quote requires price parameter")
	}

	nights := req.Params.Int(1, "nights")
	if nights < 1 {
		nights = 1
	}
	date := req.Params.Date(time.Now().UTC(), "date", "check_in")
	hotelName := req.Params.String("Hotel", "hotel_name", "hotelName")
	roomType := req.Params.String("double", "room_type", "roomType")
	title := req.Params.String(hotelName, "title", "name")

	reference := req.Reference
	if reference == "" {
		reference = fmt.Sprintf("HTL_%s_%s_%s",
			skuKey(hotelName), skuKey(roomType), date.Format("2006-01-02"))
	}

	return models.QuoteItem{
		Reference:   reference,
		ProductType: "hotel",
		UnitPrice:   unit,
		Quantity:    nights,
		Subtotal:    unit.Mul(decimal.NewFromInt(int64(nights))),
		Fees:        feesParam(req.Params),
		Currency:    req.Currency,
		Provider:    hotelName,
		Title:       title,
	}, nil
}

// transportCalculator prices a journey: unit price is the per-traveller
// fare, quantity is the party size.
type transportCalculator struct{}

func (transportCalculator) Calculate(req Request) (models.QuoteItem, error) {
	unit, ok := req.Params.Decimal("price", "fare")
	if !ok {
		return models.QuoteItem{}, bookingerr.New(bookingerr.Validation,
			"transport quote requires price parameter")
	}

	from := strings.ToUpper(req.Params.String("", "from"))
	to := strings.ToUpper(req.Params.String("", "to"))
	date := req.Params.Date(time.Now().UTC(), "date")
	provider := req.Params.String("", "provider")
	mode := strings.ToLower(req.Params.String("transport", "mode"))
	ticketType := strings.ToLower(req.Params.String("standard", "ticket_type", "class"))

	reference := req.Reference
	if reference == "" {
		reference = fmt.Sprintf("TP_%s_%s_%s",
			skuKey(from), skuKey(to), date.Format("2006-01-02"))
	}

	travellers := req.PartySize
	return models.QuoteItem{
		Reference:   reference,
		ProductType: "transport",
		UnitPrice:   unit,
		Quantity:    travellers,
		Subtotal:    unit.Mul(decimal.NewFromInt(int64(travellers))),
		Fees:        feesParam(req.Params),
		Currency:    req.Currency,
		Provider:    provider,
		Title:       fmt.Sprintf("%s %s %s-%s (%s)", mode, ticketType, from, to, date.Format("2006-01-02")),
	}, nil
}

// attractionCalculator prices admission: unit price is the ticket price,
// quantity is the number of people.
type attractionCalculator struct{}

func (attractionCalculator) Calculate(req Request) (models.QuoteItem, error) {
	unit, ok := req.Params.Decimal("price", "ticket_price", "ticketPrice")
	if !ok {
		return models.QuoteItem{}, bookingerr.New(bookingerr.Validation,
			"attraction quote requires price parameter")
	}

	people := req.Params.Int(req.PartySize, "people")
	if people < 1 {
		people = 1
	}
	title := req.Params.String("Attraction", "title", "name")
	location := req.Params.String("", "location", "city")
	date := req.Params.Date(time.Now().UTC(), "date")
	session := req.Params.String("10:00", "time", "session")

	reference := req.Reference
	if reference == "" {
		reference = fmt.Sprintf("ATN_%s_%s_%s",
			skuKey(location), strings.ReplaceAll(session, ":", ""), date.Format("2006-01-02"))
	}

	return models.QuoteItem{
		Reference:   reference,
		ProductType: "attraction",
		UnitPrice:   unit,
		Quantity:    people,
		Subtotal:    unit.Mul(decimal.NewFromInt(int64(people))),
		Fees:        feesParam(req.Params),
		Currency:    req.Currency,
		Title:       title,
		Provider:    location,
	}, nil
}

func feesParam(params Params) decimal.Decimal {
	if fees, ok := params.Decimal("fees"); ok {
		return fees
	}
	return decimal.Zero
}

func skuKey(value string) string {
	if strings.TrimSpace(value) == "" {
		return "GEN"
	}
	return strings.ToUpper(strings.Join(strings.Fields(value), "_"))
}
