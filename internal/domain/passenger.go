package domain

import "time"

type PassengerType string

const (
	PassengerAdult  PassengerType = "adult"
	PassengerChild  PassengerType = "child"
	PassengerInfant PassengerType = "infant"
)

// Passenger is one traveller on the order. The first passenger is the
// primary contact and must carry email (and ideally phone).
type Passenger struct {
	ID          string        `json:"id,omitempty"`
	Type        PassengerType `json:"type"`
	Title       string        `json:"title,omitempty"`
	GivenName   string        `json:"given_name"`
	FamilyName  string        `json:"family_name"`
	Gender      string        `json:"gender,omitempty"`
	BornOn      *time.Time    `json:"born_on,omitempty"`
	Email       string        `json:"email,omitempty"`
	PhoneNumber string        `json:"phone_number,omitempty"`
}

// CountByType returns adult/child/infant counts for validation.
func CountByType(passengers []Passenger) (adults, children, infants int) {
	for _, p := range passengers {
		switch p.Type {
		case PassengerAdult:
			adults++
		case PassengerChild:
			children++
		case PassengerInfant:
			infants++
		}
	}
	return
}
