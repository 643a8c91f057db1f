package email

// Message is a single outbound email.
type Message struct {
	To       []string
	Subject  string
	TextBody string
	HTMLBody string
}
