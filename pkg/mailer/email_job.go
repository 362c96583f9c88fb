package mailer

// EmailJob is the message consumed by the email worker.
type EmailJob struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Text     string `json:"text,omitempty"`
	HTML     string `json:"html,omitempty"`
	Template string `json:"template,omitempty"` // currently only "welcome"
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
}
