package emailsvc

import (
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/studentpakistan/backend/core"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"

	// category of the messages sent without a template
	plainCategory = "plain"
)

// SendgridService sends the messages through the Sendgrid v3 API.
// Every message is tagged with the env and its template name, so that the onboarding emails can be tracked apart.
type SendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	env        string
	sandbox    bool
	logger     core.Logger
}

var _ core.EmailService = (*SendgridService)(nil)

func NewSendgridService(logger core.Logger) *SendgridService {
	from := core.Conf.DefaultFromEmail()
	return &SendgridService{
		key:        core.Conf.SendgridApiKey,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: "[" + core.Conf.AppName + "] ",
		env:        core.Conf.Env,
		sandbox:    core.Conf.TestMode,
		logger:     logger,
	}
}

func (svc *SendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go func(msg *core.EmailMessage) {
			if err := msg.Render(); err != nil {
				svc.logger.Error("rendering email", err, map[string]interface{}{"template": msg.TemplateName})
				return
			}
			if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
				svc.logger.Warn("dropping empty email", map[string]interface{}{"subject": msg.Subject})
				return
			}
			svc.send(msg)
		}(msg)
	}
}

func category(msg *core.EmailMessage) string {
	if msg.TemplateName == "" {
		return plainCategory
	}
	return msg.TemplateName
}

// newMail builds the v3 request body of `msg`.
func (svc *SendgridService) newMail(msg *core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject
	p.AddTos(sgEmails(msg.To)...)
	p.AddCCs(sgEmails(msg.Cc)...)
	p.AddBCCs(sgEmails(msg.Bcc)...)
	p.SetCustomArg("template", category(msg))

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddCategories(category(msg))
	if svc.env != "" {
		m.AddCategories(svc.env)
	}

	if msg.TextContent != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	}
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	for _, at := range msg.Attachments {
		a := sgmail.NewAttachment()
		a.SetContent(at.Content.String())
		a.SetType(at.ContentType)
		a.SetFilename(at.Filename)
		a.SetDisposition("attachment")
		m.AddAttachment(a)
	}

	if svc.sandbox {
		ms := sgmail.NewMailSettings()
		ms.SetSandboxMode(sgmail.NewSetting(true))
		m.SetMailSettings(ms)
	}
	return m
}

func sgEmails(addrs []mail.Address) []*sgmail.Email {
	emails := make([]*sgmail.Email, 0, len(addrs))
	for _, addr := range addrs {
		emails = append(emails, sgmail.NewEmail(addr.Name, addr.Address))
	}
	return emails
}

func (svc *SendgridService) send(msg *core.EmailMessage) {
	req := sendgrid.GetRequest(svc.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(svc.newMail(msg))

	extra := map[string]interface{}{"subject": msg.Subject, "template": category(msg)}
	res, err := sendgrid.MakeRequestRetry(req)
	if err != nil {
		svc.logger.Error("sending email", err, extra)
		return
	}
	if res.StatusCode >= http.StatusBadRequest {
		extra["status"] = res.StatusCode
		extra["body"] = res.Body
		svc.logger.Error("sending email: unexpected status", extra)
	}
}
