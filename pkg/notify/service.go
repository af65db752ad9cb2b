// Package notify sends fire-and-forget notifications after core
// transactions commit. Delivery failures are logged and never propagate back
// into the settlement path.
package notify

import (
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Service handles email notifications
type Service struct {
	fromEmail   string
	fromName    string
	sendGridKey string
	useSendGrid bool
	printer     *message.Printer
}

// NewService creates a new notification service.
// If sendGridAPIKey is provided, emails will be sent via SendGrid.
// Otherwise, notifications are logged to console (development mode).
func NewService(fromEmail, fromName, sendGridAPIKey string) *Service {
	useSendGrid := sendGridAPIKey != ""
	if useSendGrid {
		log.Printf("✅ Notification service initialized with SendGrid")
	} else {
		log.Printf("⚠️  Notification service in console-only mode (set SENDGRID_API_KEY for production)")
	}

	return &Service{
		fromEmail:   fromEmail,
		fromName:    fromName,
		sendGridKey: sendGridAPIKey,
		useSendGrid: useSendGrid,
		printer:     message.NewPrinter(language.English),
	}
}

// RedemptionSettled notifies a shop owner that one of their coupons was
// redeemed.
func (s *Service) RedemptionSettled(shopEmail, couponTitle string, usesLeft int) {
	subject := "Your coupon was redeemed"
	body := fmt.Sprintf("Your coupon %q was just redeemed. %d uses remaining.", couponTitle, usesLeft)
	s.deliver(shopEmail, subject, body)
}

// PayoutResolved notifies an affiliate that their payout request was
// approved or rejected.
func (s *Service) PayoutResolved(email string, amountCents int64, approved bool, detail string) {
	amount := s.printer.Sprintf("$%.2f", float64(amountCents)/100)
	var subject, body string
	if approved {
		subject = "Your payout is on its way"
		body = fmt.Sprintf("Your payout of %s was approved (reference: %s).", amount, detail)
	} else {
		subject = "Your payout request was rejected"
		body = fmt.Sprintf("Your payout of %s was rejected: %s. The amount is back on your available balance.", amount, detail)
	}
	s.deliver(email, subject, body)
}

// KeyIssued notifies a shop owner that an activation key was issued for
// their credit request.
func (s *Service) KeyIssued(shopEmail string, credits int64) {
	subject := "Your credit activation key is ready"
	body := s.printer.Sprintf("An activation key for %d credits was issued to your account. It expires in 72 hours.", credits)
	s.deliver(shopEmail, subject, body)
}

func (s *Service) deliver(toEmail, subject, body string) {
	if toEmail == "" {
		return
	}

	if !s.useSendGrid {
		log.Printf("📧 [console] to=%s subject=%q body=%q", toEmail, subject, body)
		return
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail("", toEmail)
	msg := mail.NewSingleEmail(from, subject, to, body, "<p>"+body+"</p>")

	client := sendgrid.NewSendClient(s.sendGridKey)
	resp, err := client.Send(msg)
	if err != nil {
		log.Printf("⚠️  Failed to send notification to %s: %v", toEmail, err)
		return
	}
	if resp.StatusCode >= 400 {
		log.Printf("⚠️  SendGrid rejected notification to %s: status %d", toEmail, resp.StatusCode)
	}
}
