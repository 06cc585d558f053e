package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studentpakistan/backend/core"
	logsvc "github.com/studentpakistan/backend/services/logger"
)

func TestSendgridService_newMail(t *testing.T) {
	svc := &SendgridService{
		from:       sgmail.NewEmail("Student Pakistan", "noreply@studentpakistan.pk"),
		subjPrefix: "[Student Pakistan] ",
		env:        "staging",
		logger:     logsvc.NewNopLogger(),
	}
	to := []mail.Address{{Name: "Admin", Address: "admin@lgs.edu.pk"}}

	tests := []struct {
		name           string
		msg            core.EmailMessage
		sandbox        bool
		wantCategories []string
		wantContents   int
	}{
		{
			name:           "template",
			msg:            core.EmailMessage{To: to, Subject: "Your school is registered", TemplateName: "school_registered", TextContent: "text", HTMLContent: "<p>html</p>"},
			wantCategories: []string{"school_registered", "staging"},
			wantContents:   2,
		},
		{
			name:           "plain text in sandbox",
			msg:            core.EmailMessage{To: to, Cc: to, Subject: "Hello", TextContent: "text"},
			sandbox:        true,
			wantCategories: []string{plainCategory, "staging"},
			wantContents:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc.sandbox = tt.sandbox
			msg := tt.msg
			require.NoError(t, msg.Attach(strings.NewReader("%PDF-1.4"), "registration-proof.pdf", "application/pdf"))

			m := svc.newMail(&msg)
			assert.Equal(t, tt.wantCategories, m.Categories)
			require.Len(t, m.Personalizations, 1)
			p := m.Personalizations[0]
			assert.Equal(t, "[Student Pakistan] "+tt.msg.Subject, p.Subject)
			assert.Equal(t, "admin@lgs.edu.pk", p.To[0].Address)
			assert.Len(t, p.CC, len(tt.msg.Cc))
			assert.Equal(t, tt.wantCategories[0], p.CustomArgs["template"])
			assert.Len(t, m.Content, tt.wantContents)
			assert.Equal(t, "text/plain", m.Content[0].Type)

			require.Len(t, m.Attachments, 1)
			assert.Equal(t, "registration-proof.pdf", m.Attachments[0].Filename)
			assert.Equal(t, "application/pdf", m.Attachments[0].Type)
			assert.Equal(t, "attachment", m.Attachments[0].Disposition)

			if tt.sandbox {
				require.NotNil(t, m.MailSettings)
				require.NotNil(t, m.MailSettings.SandboxMode)
				assert.True(t, *m.MailSettings.SandboxMode.Enable)
			} else {
				assert.Nil(t, m.MailSettings)
			}
		})
	}
}
