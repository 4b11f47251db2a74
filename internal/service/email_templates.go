package service

import "fmt"

func welcomeEmailTemplate(name, appURL, appName string) (string, string) {
	subject := fmt.Sprintf("Welcome to %s!", appName)
	body := fmt.Sprintf(`Hi %s,

Your account is ready. Paste your notes and turn them into flashcards:
%s

If you have questions, reach out to our support team.

Best,
The %s Team`, name, appURL, appName)

	return subject, body
}

func premiumActivatedEmailTemplate(name, appURL, appName string) (string, string) {
	subject := fmt.Sprintf("Your %s Pro upgrade is active", appName)
	body := fmt.Sprintf(`Hi %s,

Thanks for your payment. Premium features are now unlocked on your account:
%s

Best,
The %s Team`, name, appURL, appName)

	return subject, body
}
