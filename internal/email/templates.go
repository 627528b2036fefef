package email

// Built-in templates, used when a row carries no subject or body column.
// They are merge templates: {{ field }} placeholders are filled per recipient.
const (
	DefaultSubject = "Update"

	DefaultBodyHTML = `<html><body><p>Hi {{ name }},</p><p>Update attached.</p></body></html>`
)

// Templates for the single-recipient acknowledgement.
const (
	FormReceivedSubject = "We received your form"

	FormReceivedHTML = `<html><body>
<p>Hi {{ name }},</p>
<p>Thanks for your submission.</p>
</body></html>`
)
