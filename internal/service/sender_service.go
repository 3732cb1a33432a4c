package service

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"time"

	"fleetrental/internal/entities"
	"fleetrental/internal/templates"
)

// SenderService builds and dispatches customer-facing confirmation
// messages. Delivery is asynchronous and best-effort; failures are logged
// and never fail the booking.
type SenderService struct {
	Timezone  *time.Location
	emailTmpl *template.Template
}

func NewSenderService() *SenderService {
	loc, err := time.LoadLocation("Australia/Brisbane")
	if err != nil {
		loc = time.FixedZone("AEST", 10*60*60)
	}
	tmpl, err := template.ParseFS(templates.FS, "booking_email.html")
	if err != nil {
		log.Printf("Sender: parsing booking email template: %v", err)
	}
	return &SenderService{Timezone: loc, emailTmpl: tmpl}
}

func (s *SenderService) SendConfirmationEmail(res entities.Reservation, vehicleLabel string) {
	emailData := entities.BookingEmailData{
		CustomerName:    res.CustomerName,
		ReservationCode: res.ID,
		VehicleLabel:    vehicleLabel,
		PickupFormatted: res.PickupDate.In(s.Timezone).Format("02 Jan 2006 15:04 MST"),
		ReturnFormatted: res.DropoffDate.In(s.Timezone).Format("02 Jan 2006 15:04 MST"),
		CurrentYear:     time.Now().In(s.Timezone).Year(),
	}

	subject := fmt.Sprintf("Your rental is confirmed - %s", emailData.VehicleLabel)
	plainTextBody := fmt.Sprintf(
		"Hi %s,\n\nYour rental booking is confirmed.\n\n"+
			"Vehicle: %s\n"+
			"Pickup: %s\n"+
			"Return: %s\n\n"+
			"See you at the depot.\n",
		emailData.CustomerName, emailData.VehicleLabel,
		emailData.PickupFormatted, emailData.ReturnFormatted,
	)

	htmlBody := plainTextBody
	if s.emailTmpl != nil {
		var buf bytes.Buffer
		if err := s.emailTmpl.Execute(&buf, emailData); err == nil {
			htmlBody = buf.String()
		} else {
			log.Printf("Sender: executing booking email template for %s: %v", res.ID, err)
		}
	}

	go func(toEmail, toName, subject, plainBody, htmlBody string) {
		if err := SendEmailWithSendGrid(toEmail, toName, subject, plainBody, htmlBody); err != nil {
			log.Printf("Sender (async): confirmation email for reservation %s failed: %v", res.ID, err)
		}
	}(res.CustomerEmail, res.CustomerName, subject, plainTextBody, htmlBody)
}

func (s *SenderService) SendConfirmationSMS(res entities.Reservation, vehicleLabel string) {
	message := fmt.Sprintf("Fleet Rentals: your booking is confirmed!\nVehicle: %s\nPickup: %s.\nDetails in your email.",
		vehicleLabel, res.PickupDate.In(s.Timezone).Format("02/01 15:04"))

	go func(toNumber, body string) {
		if err := SendSMS(toNumber, body); err != nil {
			log.Printf("Sender (async): confirmation SMS for reservation %s failed: %v", res.ID, err)
		}
	}(res.CustomerPhone, message)
}
