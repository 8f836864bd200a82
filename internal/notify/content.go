package notify

import (
	"fmt"
	"strings"

	"github.com/richardliu001/onboarding-service/internal/model"
)

const (
	AccountCreatedSubject = "Account Created Successfully"
	failureSubjectPrefix  = "Onboarding Process Update - "
	defaultFailureSms     = "Bank ABC: Onboarding process issue. Please contact support or try again later."
)

// Recipient is who a notification goes to.
type Recipient struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Name falls back to "Customer" when no name is known.
func (r Recipient) Name() string {
	if n := strings.TrimSpace(r.FirstName + " " + r.LastName); n != "" {
		return n
	}
	return "Customer"
}

// RecipientFor builds a Recipient from a record.
func RecipientFor(o *model.Onboarding) Recipient {
	return Recipient{FirstName: o.FirstName, LastName: o.LastName, Email: o.Email, Phone: o.Phone}
}

type content struct {
	subject string
	email   string
	sms     string
}

func accountCreatedContent(r Recipient, accountNumber string) content {
	email := fmt.Sprintf(`Dear %s,

Congratulations! Your Bank ABC account has been successfully created.

Account Details:
- Account Number: %s
- Email: %s
- Phone: %s

You can now start using your new account for online banking.

Best regards,
Bank ABC Team
`, r.Name(), accountNumber, r.Email, r.Phone)
	sms := fmt.Sprintf("Welcome to Bank ABC! Your account %s has been created successfully. "+
		"You can now log in to online banking.", accountNumber)
	return content{subject: AccountCreatedSubject, email: email, sms: sms}
}

type failureTemplate struct {
	subject string
	intro   string
	steps   []string
	outro   string
	sms     string
}

var failureTemplates = map[string]failureTemplate{
	model.ErrTypeKycVerificationFailed: {
		subject: "Identity Verification Required",
		intro:   "We encountered an issue during your identity verification process.",
		steps: []string{
			"Please ensure your passport and photo documents are clear and readable",
			"Make sure all personal information matches your official documents",
			"Contact our support team if you need assistance",
		},
		outro: "You can restart the verification process by logging into your account.",
		sms:   "Bank ABC: Identity verification failed. Please check your documents and try again. Contact support if needed.",
	},
	model.ErrTypeAddressVerificationFailed: {
		subject: "Address Verification Required",
		intro:   "We were unable to verify your residential address.",
		steps: []string{
			"Please ensure your address information is complete and accurate",
			"Verify that your address is a residential address (not a P.O. Box)",
			"Contact our support team if you need assistance updating your address",
		},
		outro: "You can update your address information by logging into your account.",
		sms:   "Bank ABC: Address verification failed. Please update your address information and try again.",
	},
	model.ErrTypeAccountCreationFailed: {
		subject: "Account Creation Issue",
		intro:   "We encountered a technical issue while creating your bank account.",
		steps: []string{
			"Our technical team has been notified of this issue",
			"We will attempt to resolve this within 24 hours",
			"You will receive another notification once your account is created",
			"Contact our support team if you need immediate assistance",
		},
		outro: "We apologize for any inconvenience caused.",
		sms:   "Bank ABC: Account creation issue detected. Our team is working on it. You'll be notified once resolved.",
	},
	model.ErrTypeDocumentUploadFailed: {
		subject: "Document Upload Issue",
		intro:   "We encountered an issue processing your uploaded documents.",
		steps: []string{
			"Please ensure your documents are in the correct format (JPEG, PNG, or PDF)",
			"Make sure file sizes are under 10MB",
			"Ensure documents are clear and all text is readable",
			"Try uploading your documents again",
		},
		outro: "You can upload your documents by logging into your account.",
		sms:   "Bank ABC: Document upload failed. Please check file format and size, then try again.",
	},
}

var generalFailure = failureTemplate{
	subject: "Onboarding Process Update",
	intro:   "We encountered an issue during your onboarding process.",
	steps: []string{
		"Please review your information and try again",
		"Contact our support team if you need assistance",
		"You can restart the process by logging into your account",
	},
	sms: defaultFailureSms,
}

func failureContent(r Recipient, errorType, errorMessage string) content {
	tpl, ok := failureTemplates[strings.ToUpper(errorType)]
	if !ok {
		tpl = generalFailure
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n%s\n\nIssue: %s\n\nNext Steps:\n", r.Name(), tpl.intro, errorMessage)
	for _, s := range tpl.steps {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	if tpl.outro != "" {
		fmt.Fprintf(&b, "\n%s\n", tpl.outro)
	}
	b.WriteString("\nIf you have any questions, please contact our support team.\n\nBest regards,\nBank ABC Team\n")
	return content{subject: failureSubjectPrefix + tpl.subject, email: b.String(), sms: tpl.sms}
}
