package domain

type ServiceKind string

const (
	ServiceSeat    ServiceKind = "seat"
	ServiceBaggage ServiceKind = "baggage"
)

// AncillaryService is a paid add-on (seat, bag) priced by the provider in
// its own currency. The list is mutable only before payment.
type AncillaryService struct {
	ID    string      `json:"id"`
	Kind  ServiceKind `json:"kind"`
	Price Money       `json:"price"`
}
