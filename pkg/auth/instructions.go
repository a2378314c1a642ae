package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteKeyGuide prints how to obtain the four OAuth1 values from the
// Twitter developer portal
func WriteKeyGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "TWITTER API CREDENTIALS")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "tweetcollector signs requests with OAuth 1.0a user context.")
	fmt.Fprintln(w, "You need a consumer key pair and an access token pair.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "1. Sign in at https://developer.twitter.com/en/portal/dashboard")
	fmt.Fprintln(w, "2. Open your project and select the app to use (or create one)")
	fmt.Fprintln(w, "3. Go to 'Keys and tokens'")
	fmt.Fprintln(w, "4. Under 'Consumer Keys' copy the API Key and API Key Secret")
	fmt.Fprintln(w, "5. Under 'Authentication Tokens' generate an Access Token and Secret")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Then either run 'tweetcollector auth login' or export:")
	fmt.Fprintf(w, "   %s\n   %s\n   %s\n   %s\n", EnvConsumerKey, EnvConsumerSecret, EnvAccessToken, EnvAccessSecret)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Tokens act as your account. Keep them out of version control.")
	fmt.Fprintln(w, rule)
}
