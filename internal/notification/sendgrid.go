// Package notification emails customers about their reservations.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"carrental-backend/internal/domain"
	"carrental-backend/internal/logger"
	"carrental-backend/internal/repository"
)

// Sender is satisfied by *sendgrid.Client.
type Sender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

type message struct {
	subject string
	body    func(ev domain.Event) string
}

func amount(ev domain.Event) string {
	if ev.Amount == nil {
		return "0.00"
	}
	return ev.Amount.StringFixed(2)
}

// messages holds the customer facing copy per event. Events not listed here
// are not emailed.
var messages = map[domain.EventType]message{
	domain.EventReservationCreated: {"We received your booking request", func(ev domain.Event) string {
		return fmt.Sprintf("Your reservation %s is waiting for a deposit of %s to be confirmed.", ev.ReservationID, ev.Data["deposit"])
	}},
	domain.EventReservationConfirmed: {"Your reservation is confirmed", func(ev domain.Event) string {
		return fmt.Sprintf("Reservation %s is confirmed. See you at pickup.", ev.ReservationID)
	}},
	domain.EventReservationExpired: {"Your booking request expired", func(ev domain.Event) string {
		return fmt.Sprintf("Reservation %s expired because no deposit was received.", ev.ReservationID)
	}},
	domain.EventReservationCancelled: {"Your reservation was cancelled", func(ev domain.Event) string {
		return fmt.Sprintf("Reservation %s was cancelled. Reason: %s.", ev.ReservationID, ev.Data["reason"])
	}},
	domain.EventExtensionRequested: {"Extension pending payment", func(ev domain.Event) string {
		return fmt.Sprintf("To extend reservation %s until %s please pay %s.", ev.ReservationID, ev.Data["end_date"], amount(ev))
	}},
	domain.EventReservationExtended: {"Your rental was extended", func(ev domain.Event) string {
		return fmt.Sprintf("Reservation %s now ends on %s.", ev.ReservationID, ev.Data["end_date"])
	}},
	domain.EventVehicleReturned: {"Thanks for returning the car", func(ev domain.Event) string {
		return fmt.Sprintf("Reservation %s: the remaining balance is %s.", ev.ReservationID, amount(ev))
	}},
	domain.EventExtraChargesPosted: {"Additional charges on your rental", func(ev domain.Event) string {
		return fmt.Sprintf("The return inspection of reservation %s posted charges of %s.", ev.ReservationID, amount(ev))
	}},
	domain.EventReservationCompleted: {"Your rental is complete", func(ev domain.Event) string {
		return fmt.Sprintf("Reservation %s is closed. Total charged: %s.", ev.ReservationID, amount(ev))
	}},
	domain.EventRefundEligible: {"A refund is on its way", func(ev domain.Event) string {
		return fmt.Sprintf("Reservation %s is eligible for a refund of %s.", ev.ReservationID, amount(ev))
	}},
}

// Notifier is an event publisher that emails the reservation owner.
type Notifier struct {
	client    Sender
	directory repository.UserDirectory
	from      *mail.Email
}

func NewNotifier(client Sender, directory repository.UserDirectory, fromEmail, fromName string) *Notifier {
	return &Notifier{
		client:    client,
		directory: directory,
		from:      mail.NewEmail(fromName, fromEmail),
	}
}

// NewSendGridNotifier builds a Notifier on the SendGrid v3 API.
func NewSendGridNotifier(apiKey string, directory repository.UserDirectory, fromEmail, fromName string) *Notifier {
	return NewNotifier(sendgrid.NewSendClient(apiKey), directory, fromEmail, fromName)
}

func (n *Notifier) Publish(ctx context.Context, events ...domain.Event) error {
	var errs []error
	for _, ev := range events {
		msg, ok := messages[ev.Type]
		if !ok || ev.UserID == "" {
			continue
		}
		if err := n.send(ctx, ev, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) send(ctx context.Context, ev domain.Event, msg message) error {
	contact, err := n.directory.GetContact(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("resolve contact for %s: %w", ev.UserID, err)
	}
	if contact.Email == "" {
		logger.Warn("Skipping notification without email", "user_id", ev.UserID, "event", ev.Type)
		return nil
	}

	plain := fmt.Sprintf("Hello %s,\n\n%s\n\nThe rental team", contact.FullName(), msg.body(ev))
	html := "<p>" + strings.ReplaceAll(plain, "\n\n", "</p><p>") + "</p>"
	m := mail.NewSingleEmail(n.from, msg.subject, mail.NewEmail(contact.FullName(), contact.Email), plain, html)

	logger.ExternalServiceCall("sendgrid", "send", "event", ev.Type, "reservation_id", ev.ReservationID)
	resp, err := n.client.Send(m)
	if err == nil && resp != nil && resp.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", resp.StatusCode, resp.Body)
	}
	logger.ExternalServiceResult("sendgrid", "send", err, "event", ev.Type)
	if err != nil {
		return fmt.Errorf("send %s email: %w", ev.Type, err)
	}
	return nil
}
