package mailer

import (
	"bytes"
	"html/template"
	"time"
)

type Email struct {
	Subject string
	Body    string
}

var layout = template.Must(template.New("layout").Parse(`<div style="font-family: Arial, Helvetica, sans-serif; background-color: #f6f8fa; padding: 24px;">
  <div style="max-width: 520px; margin: 0 auto; background-color: #ffffff; padding: 32px; border-radius: 8px; border: 1px solid #e5e7eb;">
    <h2 style="color: #171A1F; margin-bottom: 12px;">{{.Heading}}</h2>
    {{range .Paragraphs}}<p style="color: #565D6D; font-size: 14px; line-height: 1.6; margin-bottom: 16px;">{{.}}</p>
    {{end}}<div style="text-align: center; margin-top: 28px;">
      <a href="{{.ActionURL}}" style="display: inline-block; padding: 12px 24px; background-color: #7FAE96; color: #ffffff; text-decoration: none; font-weight: 600; border-radius: 6px; font-size: 14px;">{{.ActionLabel}}</a>
    </div>
    <hr style="border: none; border-top: 1px solid #e5e7eb; margin: 24px 0;" />
    <p style="color: #9CA3AF; font-size: 12px; text-align: center;">&copy; {{.Year}} Memora</p>
  </div>
</div>`))

type layoutData struct {
	Heading     string
	Paragraphs  []string
	ActionURL   string
	ActionLabel string
	Year        int
}

func render(data layoutData) string {
	data.Year = time.Now().Year()
	var buf bytes.Buffer
	if err := layout.Execute(&buf, data); err != nil {
		// the template is static and the data is plain strings
		panic(err)
	}
	return buf.String()
}

func VerificationEmail(name, link string) Email {
	return Email{
		Subject: "Verify your Memora account",
		Body: render(layoutData{
			Heading: "Hi " + name + ", welcome to Memora",
			Paragraphs: []string{
				"Please confirm your email address to activate your account.",
				"If you did not sign up for Memora you can ignore this email.",
			},
			ActionURL:   link,
			ActionLabel: "Verify Email",
		}),
	}
}

func WelcomeEmail(name, provider, dashboardURL string) Email {
	intro := "Your email is verified and your account is ready."
	if provider != "" && provider != "local" {
		intro = "Thank you for joining Memora via " + provider + "."
	}
	return Email{
		Subject: "Welcome to Memora!",
		Body: render(layoutData{
			Heading: "Hi " + name + ", welcome to Memora",
			Paragraphs: []string{
				intro,
				"Your memories are personal and private. We don't read, analyze, or sell your content.",
			},
			ActionURL:   dashboardURL,
			ActionLabel: "Start Capturing Memories",
		}),
	}
}

func PasswordResetEmail(name, link string) Email {
	return Email{
		Subject: "Reset your Memora password",
		Body: render(layoutData{
			Heading: "Hi " + name + ",",
			Paragraphs: []string{
				"We received a request to reset the password for your Memora account.",
				"If you did not ask for this you can ignore this email; your password will not change.",
			},
			ActionURL:   link,
			ActionLabel: "Reset Password",
		}),
	}
}
