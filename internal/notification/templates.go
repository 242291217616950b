package notification

import (
	"bytes"
	"fmt"
	"text/template"
)

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(subject, body string) emailTemplate {
	return emailTemplate{
		subject: template.Must(template.New("subject").Parse(subject)),
		body:    template.Must(template.New("body").Parse(body)),
	}
}

var templates = map[Kind]emailTemplate{
	KindPaymentSuccess: mustTemplate(
		"Payment received: {{.reference}}",
		`Hi {{.name}},

We received your payment of {{.amount}} {{.currency}} (reference {{.reference}}).
Your lessons are now available at {{.base_url}}/lessons.

Thanks for learning with us.
`),
	KindCommissionEarned: mustTemplate(
		"You earned a referral commission",
		`Hi {{.name}},

Someone you referred just paid {{.amount_paid}}. You earned a commission of {{.commission}}.
Your pending balance is visible at {{.base_url}}/referrals.
`),
	KindPayoutRequested: mustTemplate(
		"Payout requested by referrer #{{.referrer_id}}",
		`Referrer #{{.referrer_id}} ({{.referrer_email}}) requested a payout.

Pending transactions: {{.pending_count}}
Pending amount: {{.pending_amount}}
Bank: {{.bank_name}} {{.account_number}}
`),
	KindPayoutProcessed: mustTemplate(
		"Payout processed: {{.batch_id}}",
		`Hi {{.name}},

Your payout {{.batch_id}} of {{.total}} covering {{.count}} commission(s) has been processed.
`),
}

// Render produces the subject and plain-text body for a notification
func Render(kind Kind, to Recipient, payload Payload, baseURL string) (subject, body string, err error) {
	tpl, ok := templates[kind]
	if !ok {
		return "", "", fmt.Errorf("no template for notification kind %q", kind)
	}

	data := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		data[k] = v
	}
	data["name"] = to.Name
	if to.Name == "" {
		data["name"] = "there"
	}
	data["base_url"] = baseURL

	var sb, bb bytes.Buffer
	if err := tpl.subject.Execute(&sb, data); err != nil {
		return "", "", fmt.Errorf("render subject: %w", err)
	}
	if err := tpl.body.Execute(&bb, data); err != nil {
		return "", "", fmt.Errorf("render body: %w", err)
	}
	return sb.String(), bb.String(), nil
}
