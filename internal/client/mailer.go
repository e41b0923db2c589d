package client

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"
	"pricepal/internal/misc"
	"pricepal/internal/model"
)

// Mailer renders and sends the HTML emails. It holds no business logic:
// deciding when an email fires is the caller's job.
type Mailer struct {
	Dialer *gomail.Dialer
	From   string
	AppURL string
}

const emailLayout = `<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: Arial, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
.container { max-width: 600px; margin: 0 auto; background-color: white; padding: 30px; border-radius: 10px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
.header { text-align: center; color: #ff6b35; margin-bottom: 30px; }
.content { line-height: 1.6; color: #333; }
.product { border: 1px solid #ddd; border-radius: 10px; padding: 20px; margin: 20px 0; text-align: center; }
.product img { max-width: 200px; height: auto; border-radius: 5px; }
.price-info { background-color: #f9f9f9; padding: 15px; border-radius: 8px; margin: 15px 0; }
.current-price { font-size: 24px; font-weight: bold; color: #ff6b35; }
.otp { font-size: 32px; font-weight: bold; color: #ff6b35; text-align: center; background-color: #f9f9f9; padding: 20px; border-radius: 10px; margin: 20px 0; }
.button { display: inline-block; background-color: #ff6b35; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; margin: 20px 0; font-weight: bold; }
.footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; color: #666; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
<div class="header"><h1>{{.Heading}}</h1></div>
<div class="content">{{template "body" .}}</div>
<div class="footer"><p>Happy saving!<br>The PricePal Team</p></div>
</div>
</body>
</html>`

func mustMailTemplate(body string) *template.Template {
	t := template.Must(template.New("layout").Parse(emailLayout))
	template.Must(t.New("body").Parse(body))
	return t
}

type mailData struct {
	Heading      string
	UserName     string
	ProductName  string
	ProductImage string
	ProductURL   string
	CurrentPrice string
	TargetPrice  string
	LowestPrice  string
	OTP          string
	AppURL       string
}

var welcomeTemplate = mustMailTemplate(`
<h2>Hello {{.UserName}}!</h2>
<p>Thank you for joining PricePal! We're excited to help you save money on your favorite products.</p>
<ul>
<li>Track prices of any Amazon India product</li>
<li>Get instant email alerts when prices drop</li>
<li>Set your target price and let us do the monitoring</li>
</ul>
<p>Start by adding your first product to track!</p>
<a href="{{.AppURL}}" class="button">Start Tracking Now</a>`)

var otpTemplate = mustMailTemplate(`
<p>You requested to reset your password. Use the OTP below to proceed:</p>
<div class="otp">{{.OTP}}</div>
<p>This OTP is valid for 10 minutes only. If you didn't request this, please ignore this email.</p>`)

var trackingStartedTemplate = mustMailTemplate(`
<h2>Hello {{.UserName}}!</h2>
<p>We're now watching <strong>{{.ProductName}}</strong> for you.</p>
<div class="product">
{{if .ProductImage}}<img src="{{.ProductImage}}" alt="Product Image" />{{end}}
<div class="price-info">
<p>Current price: <span class="current-price">{{.CurrentPrice}}</span></p>
<p>Your target price: {{.TargetPrice}}</p>
</div>
</div>
<p>We'll email you the moment the price drops to your target.</p>
<a href="{{.ProductURL}}" class="button">View on Amazon</a>`)

var priceAlertTemplate = mustMailTemplate(`
<p>Hello {{.UserName}}!</p>
<p><strong>Great news!</strong> The price of your tracked product has dropped to your target range!</p>
<div class="product">
{{if .ProductImage}}<img src="{{.ProductImage}}" alt="Product Image" />{{end}}
<h3>{{.ProductName}}</h3>
<div class="price-info">
<p>Current price: <span class="current-price">{{.CurrentPrice}}</span></p>
<p>Your target price: {{.TargetPrice}}</p>
<p>Lowest price seen: {{.LowestPrice}}</p>
</div>
</div>
<a href="{{.ProductURL}}" class="button">Buy Now on Amazon</a>`)

var thankYouTemplate = mustMailTemplate(`
<h2>Hello {{.UserName}}!</h2>
<p>We hope you grabbed <strong>{{.ProductName}}</strong> at your target price.</p>
<p>This tracker has done its job and has been retired. Add another product whenever you're ready!</p>
<a href="{{.AppURL}}" class="button">Track Another Product</a>`)

var weeklyReminderTemplate = mustMailTemplate(`
<h2>Hello {{.UserName}}!</h2>
<p>Just a friendly weekly reminder that PricePal is watching prices for you around the clock.</p>
<p>Drop by to review your tracked products or add new ones.</p>
<a href="{{.AppURL}}" class="button">Open PricePal</a>`)

func rupees(price float64) string {
	return fmt.Sprintf("₹%.2f", price)
}

func (m Mailer) send(to string, subject string, t *template.Template, data mailData) error {
	data.AppURL = m.AppURL
	var body bytes.Buffer
	if err := t.Execute(&body, data); err != nil {
		return errors.Wrapf(err, "error rendering email %#v for: %s", subject, to)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body.String())

	return errors.Wrapf(m.Dialer.DialAndSend(msg), "error sending email %#v to: %s", subject, to)
}

func (m Mailer) SendWelcome(u model.User) error {
	return m.send(u.Email, "Welcome to PricePal!", welcomeTemplate, mailData{
		Heading:  "Welcome to PricePal!",
		UserName: u.Name,
	})
}

func (m Mailer) SendPasswordResetOTP(email string, otp string) error {
	return m.send(email, "Password Reset OTP - PricePal", otpTemplate, mailData{
		Heading: "Password Reset Request",
		OTP:     otp,
	})
}

func (m Mailer) SendTrackingStarted(u model.User, p model.Product) error {
	return m.send(u.Email, "We're Tracking Your Product - PricePal", trackingStartedTemplate, mailData{
		Heading:      "Tracking Started",
		UserName:     u.Name,
		ProductName:  p.Name,
		ProductImage: p.ImageURL,
		ProductURL:   p.URL,
		CurrentPrice: rupees(p.CurrentPrice),
		TargetPrice:  rupees(p.TargetPrice),
	})
}

func (m Mailer) SendPriceAlert(u model.User, p model.Product, currentPrice float64, lowestPrice float64) error {
	subject := fmt.Sprintf("Price Drop Alert! %s...", misc.StringLimit(p.Name, 50))
	return m.send(u.Email, subject, priceAlertTemplate, mailData{
		Heading:      "Price Drop Alert!",
		UserName:     u.Name,
		ProductName:  p.Name,
		ProductImage: p.ImageURL,
		ProductURL:   p.URL,
		CurrentPrice: rupees(currentPrice),
		TargetPrice:  rupees(p.TargetPrice),
		LowestPrice:  rupees(lowestPrice),
	})
}

func (m Mailer) SendThankYou(u model.User, p model.Product) error {
	return m.send(u.Email, "Thank You for Using PricePal", thankYouTemplate, mailData{
		Heading:     "Target Price Reached!",
		UserName:    u.Name,
		ProductName: p.Name,
	})
}

func (m Mailer) SendWeeklyReminder(u model.User) error {
	return m.send(u.Email, "Your Weekly PricePal Check-In", weeklyReminderTemplate, mailData{
		Heading:  "We're Still Watching Prices",
		UserName: u.Name,
	})
}
