package email

import (
	"fmt"
	"time"
)

// PaymentConfirmedData contains the data needed for payment confirmation emails.
type PaymentConfirmedData struct {
	RecipientName   string
	Email           string
	CounterpartName string
	AppointmentAt   time.Time
	Amount          int64 // minor units
	Currency        string
	PaymentID       string
	AppName         string
}

// ReminderData contains the data needed for appointment reminder emails.
type ReminderData struct {
	PatientName   string
	Email         string
	DoctorName    string
	AppointmentAt time.Time
	Kind          string // e.g. "24h_before"
	AppName       string
}

// BuildPaymentConfirmedEmail creates a payment confirmation message for
// either side of an appointment.
func BuildPaymentConfirmedEmail(data PaymentConfirmedData) Message {
	appName := data.AppName
	if appName == "" {
		appName = "Medora"
	}

	name := data.RecipientName
	if name == "" {
		name = "there"
	}

	when := data.AppointmentAt.Format("Monday, 2 Jan 2006 at 15:04 MST")
	amount := formatAmount(data.Amount, data.Currency)

	subject := fmt.Sprintf("Payment confirmed for your %s appointment", appName)

	textBody := fmt.Sprintf(`Hi %s,

Your payment of %s for the appointment with %s on %s has been confirmed.

Payment reference: %s

Thanks,
The %s Team`,
		name, amount, data.CounterpartName, when, data.PaymentID, appName)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #2563eb;">Hi %s,</h2>
    <p>Your payment of <strong>%s</strong> for the appointment with <strong>%s</strong> has been confirmed.</p>
    <p style="background-color: #f3f4f6; padding: 10px 15px; border-radius: 4px;">%s</p>
    <p>Payment reference: <code>%s</code></p>
    <p style="color: #6b7280; font-size: 14px; margin-top: 30px;">Thanks,<br>The %s Team</p>
</body>
</html>`,
		name, amount, data.CounterpartName, when, data.PaymentID, appName)

	return Message{
		To:       []string{data.Email},
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
	}
}

// BuildReminderEmail creates an upcoming-appointment reminder message.
func BuildReminderEmail(data ReminderData) Message {
	appName := data.AppName
	if appName == "" {
		appName = "Medora"
	}

	name := data.PatientName
	if name == "" {
		name = "there"
	}

	when := data.AppointmentAt.Format("Monday, 2 Jan 2006 at 15:04 MST")

	subject := fmt.Sprintf("Reminder: your appointment with %s", data.DoctorName)

	textBody := fmt.Sprintf(`Hi %s,

This is a reminder of your upcoming appointment with %s:

%s

If you can no longer make it, please cancel in advance so the slot can be
offered to someone else.

Thanks,
The %s Team`,
		name, data.DoctorName, when, appName)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #2563eb;">Hi %s,</h2>
    <p>This is a reminder of your upcoming appointment with <strong>%s</strong>:</p>
    <p style="background-color: #f3f4f6; padding: 10px 15px; border-radius: 4px; font-size: 16px;">%s</p>
    <p style="color: #6b7280; font-size: 14px;">If you can no longer make it, please cancel in advance so the slot can be offered to someone else.</p>
    <p style="color: #6b7280; font-size: 14px; margin-top: 30px;">Thanks,<br>The %s Team</p>
</body>
</html>`,
		name, data.DoctorName, when, appName)

	return Message{
		To:       []string{data.Email},
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
	}
}

// formatAmount renders a minor-unit amount in major units, e.g. 150000 INR
// -> "INR 1500.00".
func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, minor/100, minor%100)
}
