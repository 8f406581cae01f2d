// Package fulfillment sends the post-payment confirmation to the primary
// passenger. Sends are idempotent: a duplicate confirmation is acceptable,
// zero confirmations are not.
package fulfillment

import (
	"context"
	"fmt"
	"log"

	"github.com/alltrip/orders-api/internal/domain"
	"github.com/resend/resend-go/v2"
)

type EmailNotifier struct {
	client *resend.Client
	from   string
	logger *log.Logger
}

func NewEmailNotifier(apiKey, from string, logger *log.Logger) *EmailNotifier {
	if logger == nil {
		logger = log.Default()
	}
	return &EmailNotifier{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: logger,
	}
}

// Notify emails the booking confirmation for a paid order. Failures are
// returned to the caller for queueing; they must never unwind the payment.
func (n *EmailNotifier) Notify(ctx context.Context, order domain.Order) error {
	to := order.PrimaryContact()
	if to == "" {
		return fmt.Errorf("%w: primary passenger has no email", domain.ErrInvalidPassenger)
	}

	subject, html := buildConfirmation(order)
	sent, err := n.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	})
	if err != nil {
		return fmt.Errorf("send confirmation for order %s: %w", order.ID, err)
	}

	n.logger.Printf("confirmation sent order=%s email_id=%s", order.ID, sent.Id)
	return nil
}

func buildConfirmation(order domain.Order) (subject, html string) {
	ref := order.BookingReference
	if ref == "" {
		ref = order.ID
	}
	subject = fmt.Sprintf("Your trip to %s is confirmed (Ref: %s)", order.Itinerary.Destination, ref)

	html = fmt.Sprintf(
		`<h1>Booking confirmed</h1>
<p>Reference: <strong>%s</strong></p>
<p>From: %s<br>To: %s<br>Departure: %s</p>
<p>Total paid: %s</p>
<p>This is an automatic receipt for your trip.</p>`,
		ref,
		order.Itinerary.Origin,
		order.Itinerary.Destination,
		order.Itinerary.DepartureDate.Format("2006-01-02"),
		order.TotalAmount,
	)
	return subject, html
}
