package i18n

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key names a user-visible message.
type Key string

const (
	BadRequest          Key = "request.bad"
	ImageMissing        Key = "transform.image_missing"
	UnsupportedType     Key = "transform.unsupported_type"
	PayloadTooLarge     Key = "transform.payload_too_large"
	MalformedImage      Key = "transform.malformed_image"
	FreeUsesExhausted   Key = "transform.free_uses_exhausted"
	CreditsExhausted    Key = "transform.credits_exhausted"
	TransformFailed     Key = "transform.failed"
	InternalError       Key = "internal"
	Unauthorized        Key = "auth.unauthorized"
	CredentialsRequired Key = "auth.credentials_required"
	EmailRequired       Key = "auth.email_required"
	WeakPassword        Key = "auth.weak_password"
	EmailTaken          Key = "auth.email_taken"
	InvalidCredentials  Key = "auth.invalid_credentials"
	Registered          Key = "auth.registered"
	EmailVerified       Key = "auth.email_verified"
	InvalidToken        Key = "auth.invalid_token"
	ResetRequested      Key = "auth.reset_requested"
	TokenAndPassword    Key = "auth.token_and_password_required"
	PasswordUpdated     Key = "auth.password_updated"
	TooManyAttempts     Key = "auth.too_many_attempts"
	UnsupportedPlan     Key = "payment.unsupported_plan"
	PaymentUnavailable  Key = "payment.unavailable"
	InvalidSignature    Key = "payment.invalid_signature"
	VerifySubject       Key = "mail.verify.subject"
	VerifyHeading       Key = "mail.verify.heading"
	VerifyBody          Key = "mail.verify.body"
	VerifyAction        Key = "mail.verify.action"
	ResetSubject        Key = "mail.reset.subject"
	ResetHeading        Key = "mail.reset.heading"
	ResetBody           Key = "mail.reset.body"
	ResetAction         Key = "mail.reset.action"
	MailFooter          Key = "mail.footer"
)

// Turkish is the operating language; English is the only other one served.
var (
	Turkish   = language.Turkish
	English   = language.English
	supported = []language.Tag{Turkish, English}
	matcher   = language.NewMatcher(supported)
	cat       = catalog.NewBuilder(catalog.Fallback(Turkish))
)

var messages = map[Key][2]string{
	BadRequest:          {"Geçersiz istek.", "Invalid request."},
	ImageMissing:        {"Dosya bulunamadı.", "No file was provided."},
	UnsupportedType:     {"Yalnızca JPEG ve PNG görselleri desteklenir.", "Only JPEG and PNG images are supported."},
	PayloadTooLarge:     {"Görsel en fazla 5 MB olabilir.", "The image must be 5 MB or smaller."},
	MalformedImage:      {"Görsel okunamadı.", "The image could not be read."},
	FreeUsesExhausted:   {"Ücretsiz kullanım hakkınız doldu. Devam etmek için kayıt olun.", "You have used all free transformations. Sign up to continue."},
	CreditsExhausted:    {"Krediniz kalmadı. Devam etmek için kredi satın alın.", "You are out of credits. Buy credits to continue."},
	TransformFailed:     {"Görüntü dönüştürme işlemi başarısız oldu. Lütfen tekrar deneyin.", "The image transformation failed. Please try again."},
	InternalError:       {"Beklenmeyen bir hata oluştu. Lütfen daha sonra tekrar deneyin.", "Something went wrong. Please try again later."},
	Unauthorized:        {"Oturum geçersiz. Lütfen tekrar giriş yapın.", "Your session is invalid. Please sign in again."},
	CredentialsRequired: {"Email ve şifre gerekli.", "Email and password are required."},
	EmailRequired:       {"E-posta gerekli.", "Email is required."},
	WeakPassword:        {"Şifre en az 8 karakter, bir büyük harf, bir küçük harf, bir rakam ve bir özel karakter içermelidir.", "The password needs at least 8 characters with an uppercase letter, a lowercase letter, a digit and a special character."},
	EmailTaken:          {"Bu email adresi zaten kullanımda.", "This email address is already registered."},
	InvalidCredentials:  {"Email veya şifre hatalı.", "Incorrect email or password."},
	Registered:          {"Kayıt başarılı! E-posta adresinizi kontrol edin.", "Registration complete! Check your inbox."},
	EmailVerified:       {"E-posta adresiniz doğrulandı.", "Your email address has been verified."},
	InvalidToken:        {"Geçersiz veya süresi dolmuş bağlantı.", "The link is invalid or has expired."},
	ResetRequested:      {"Eğer bu e-posta sistemde varsa, sıfırlama linki gönderildi.", "If this email is registered, a reset link has been sent."},
	TokenAndPassword:    {"Token ve yeni şifre gerekli.", "A token and a new password are required."},
	PasswordUpdated:     {"Şifre başarıyla güncellendi.", "Your password has been updated."},
	TooManyAttempts:     {"Çok fazla deneme. Lütfen daha sonra tekrar deneyin.", "Too many attempts. Please try again later."},
	UnsupportedPlan:     {"Geçersiz paket seçimi.", "Unknown plan."},
	PaymentUnavailable:  {"Ödeme şu anda alınamıyor. Lütfen daha sonra tekrar deneyin.", "Payments are unavailable right now. Please try again later."},
	InvalidSignature:    {"Geçersiz imza.", "Invalid signature."},
	VerifySubject:       {"Drawtica - E-posta Doğrulama", "Drawtica - Verify your email"},
	VerifyHeading:       {"E-posta Adresinizi Doğrulayın", "Verify your email address"},
	VerifyBody:          {"Drawtica hesabınızı aktifleştirmek için aşağıdaki bağlantıya tıklayın.", "Click the link below to activate your Drawtica account."},
	VerifyAction:        {"E-posta Adresimi Doğrula", "Verify my email"},
	ResetSubject:        {"Drawtica - Şifre Sıfırlama", "Drawtica - Reset your password"},
	ResetHeading:        {"Şifre Sıfırlama", "Password reset"},
	ResetBody:           {"Şifrenizi sıfırlamak için aşağıdaki bağlantıya tıklayın. Bu bağlantı 1 saat geçerlidir.", "Click the link below to reset your password. The link is valid for 1 hour."},
	ResetAction:         {"Şifremi Sıfırla", "Reset my password"},
	MailFooter:          {"Bu e-posta otomatik olarak gönderilmiştir. Bu işlemi siz yapmadıysanız görmezden gelebilirsiniz.", "This email was sent automatically. If you did not request it you can ignore it."},
}

func init() {
	for key, texts := range messages {
		if err := cat.SetString(Turkish, string(key), texts[0]); err != nil {
			panic(err)
		}
		if err := cat.SetString(English, string(key), texts[1]); err != nil {
			panic(err)
		}
	}
}

// Match picks the served language for a raw locale string such as "tr",
// "en-US" or a whole Accept-Language header. Unknown input yields fallback.
func Match(raw string, fallback language.Tag) language.Tag {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	tags, _, err := language.ParseAcceptLanguage(raw)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	return supported[idx]
}

// Parse maps a locale code onto a served language, defaulting to Turkish.
func Parse(code string) language.Tag {
	return Match(code, Turkish)
}

// Code returns the short code ("tr" or "en") for a served language.
func Code(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

// Printer returns a printer bound to the catalog for tag.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(cat))
}

// T renders key in the language named by code.
func T(code string, key Key) string {
	return Printer(Parse(code)).Sprintf(string(key))
}
