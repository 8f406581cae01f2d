package inventory

import (
	"fmt"
	"time"

	"github.com/alltrip/orders-api/internal/domain"
)

// Last-resort birth dates by passenger type, used only when the caller
// supplied none. Defaulted fields are reported back as a warning.
var defaultBornOn = map[domain.PassengerType]string{
	domain.PassengerAdult:  "1990-01-01",
	domain.PassengerChild:  "2015-01-01",
	domain.PassengerInfant: "2024-01-01",
}

const defaultPhoneNumber = "+16468377600"

type orderRequest struct {
	Data orderPayload `json:"data"`
}

type orderPayload struct {
	Type           string             `json:"type"`
	SelectedOffers []string           `json:"selected_offers"`
	Passengers     []passengerPayload `json:"passengers"`
	Services       []servicePayload   `json:"services,omitempty"`
}

type passengerPayload struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	GivenName   string `json:"given_name"`
	FamilyName  string `json:"family_name"`
	Gender      string `json:"gender"`
	BornOn      string `json:"born_on"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	// InfantPassengerID links a responsible adult to the infant riding
	// with them.
	InfantPassengerID string `json:"infant_passenger_id,omitempty"`
}

type servicePayload struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

type orderResponse struct {
	Data struct {
		ID                string     `json:"id"`
		BookingReference  string     `json:"booking_reference"`
		TotalAmount       string     `json:"total_amount"`
		TotalCurrency     string     `json:"total_currency"`
		PaymentRequiredBy *time.Time `json:"payment_required_by"`
	} `json:"data"`
}

type offerResponse struct {
	Data struct {
		ID                string    `json:"id"`
		TotalAmount       string    `json:"total_amount"`
		TotalCurrency     string    `json:"total_currency"`
		ExpiresAt         time.Time `json:"expires_at"`
		AvailableServices []struct {
			ID            string `json:"id"`
			Type          string `json:"type"`
			TotalAmount   string `json:"total_amount"`
			TotalCurrency string `json:"total_currency"`
		} `json:"available_services"`
	} `json:"data"`
}

type errorResponse struct {
	Errors []struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"errors"`
}

// buildOrderPayload translates domain passengers into the provider's
// shape. Each infant is paired with a distinct adult; the pairing is
// rejected locally when infants outnumber adults rather than letting the
// provider fail the whole booking.
func buildOrderPayload(offerRef string, passengers []domain.Passenger, services []domain.AncillaryService) (orderPayload, []string, error) {
	if len(passengers) == 0 {
		return orderPayload{}, nil, domain.ErrPassengersRequired
	}
	adults, _, infants := domain.CountByType(passengers)
	if infants > adults {
		return orderPayload{}, nil, domain.ErrInfantWithoutAdult
	}

	var adultIdx []int
	for i, p := range passengers {
		if p.Type == domain.PassengerAdult {
			adultIdx = append(adultIdx, i)
		}
	}

	var defaulted []string
	nextAdult := 0
	out := make([]passengerPayload, 0, len(passengers))
	for i, p := range passengers {
		if p.GivenName == "" || p.FamilyName == "" {
			return orderPayload{}, nil, fmt.Errorf("%w: passenger %d missing name", domain.ErrInvalidPassenger, i)
		}

		pp := passengerPayload{
			ID:          p.ID,
			Title:       p.Title,
			GivenName:   p.GivenName,
			FamilyName:  p.FamilyName,
			Gender:      p.Gender,
			Email:       p.Email,
			PhoneNumber: p.PhoneNumber,
		}
		if pp.Title == "" {
			pp.Title = "mr"
			defaulted = append(defaulted, field(i, "title"))
		}
		if pp.Gender == "" {
			pp.Gender = "m"
			defaulted = append(defaulted, field(i, "gender"))
		}
		if p.BornOn != nil {
			pp.BornOn = p.BornOn.Format("2006-01-02")
		} else {
			pp.BornOn = defaultBornOn[p.Type]
			defaulted = append(defaulted, field(i, "born_on"))
		}
		if pp.Email == "" {
			pp.Email = passengers[0].Email
			defaulted = append(defaulted, field(i, "email"))
		}
		if pp.PhoneNumber == "" {
			pp.PhoneNumber = defaultPhoneNumber
			defaulted = append(defaulted, field(i, "phone_number"))
		}

		out = append(out, pp)
	}

	// Pair each infant with a distinct adult after the main pass.
	for _, p := range passengers {
		if p.Type != domain.PassengerInfant {
			continue
		}
		out[adultIdx[nextAdult]].InfantPassengerID = p.ID
		nextAdult++
	}

	payload := orderPayload{
		Type:           "hold",
		SelectedOffers: []string{offerRef},
		Passengers:     out,
	}
	for _, svc := range services {
		payload.Services = append(payload.Services, servicePayload{ID: svc.ID, Quantity: 1})
	}
	return payload, defaulted, nil
}

func field(idx int, name string) string {
	return fmt.Sprintf("passengers[%d].%s", idx, name)
}
