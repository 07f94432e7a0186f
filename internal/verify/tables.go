package verify

// trustedProviders maps a provider name to the domains it officially
// sends mail or hosts content from.
var trustedProviders = map[string][]string{
	"google":    {"google.com", "gmail.com", "googlemail.com", "accounts.google.com", "youtube.com", "google.co.uk", "docs.google.com", "drive.google.com", "mail.google.com"},
	"microsoft": {"microsoft.com", "office.com", "live.com", "outlook.com", "hotmail.com", "msn.com", "office365.com", "sharepoint.com", "teams.microsoft.com"},
	"apple":     {"apple.com", "icloud.com", "me.com", "itunes.com", "appleid.apple.com"},
	"amazon":    {"amazon.com", "amazon.co.uk", "amazonaws.com", "a.co", "amazon.ca", "amazon.de", "amazon.fr", "amazon.es", "amazon.it", "amazon.in"},
	"facebook":  {"facebook.com", "fb.com", "instagram.com", "whatsapp.com", "messenger.com", "fbcdn.net", "cdninstagram.com"},
	"twitter":   {"twitter.com", "x.com", "t.co"},
	"linkedin":  {"linkedin.com", "lnkd.in"},
	"paypal":    {"paypal.com", "paypal.co.uk", "paypal.ca", "paypal.de"},
	"netflix":   {"netflix.com", "nflx.com", "nflxext.com", "nflximg.com", "nflxvideo.net"},
	"adobe":     {"adobe.com", "acrobat.com", "typekit.com", "behance.net"},
	"dropbox":   {"dropbox.com", "dropboxusercontent.com"},
	"github":    {"github.com", "githubusercontent.com", "githubassets.com"},
	"bank":      {"chase.com", "bankofamerica.com", "wellsfargo.com", "citibank.com", "usbank.com"},
	"business_services": {
		"salesforce.com", "zendesk.com", "mailchimp.com", "sendgrid.net", "hubspot.com",
		"stripe.com", "shopify.com", "slack.com", "atlassian.com", "zoom.us",
	},
}

type domainTrust struct {
	name       string
	confidence float64
}

// trustedDomains are sender domains vouched for by the whitelist, with
// the base confidence assigned to each.
var trustedDomains = map[string]domainTrust{
	"google.com":    {"Google", 0.95},
	"gmail.com":     {"Gmail", 0.92},
	"microsoft.com": {"Microsoft", 0.95},
	"outlook.com":   {"Microsoft Outlook", 0.92},
	"apple.com":     {"Apple", 0.95},
	"amazon.com":    {"Amazon", 0.90},
	"paypal.com":    {"PayPal", 0.90},
	"facebook.com":  {"Facebook", 0.90},
	"instagram.com": {"Instagram", 0.90},
	"twitter.com":   {"Twitter", 0.90},
	"linkedin.com":  {"LinkedIn", 0.90},
}

// trustedEmails are exact sender addresses vouched for individually.
var trustedEmails = map[string]domainTrust{
	"noreply@github.com":            {"GitHub notifications", 0.95},
	"security-noreply@linkedin.com": {"LinkedIn security", 0.95},
	"no-reply@accounts.google.com":  {"Google account security", 0.95},
}
