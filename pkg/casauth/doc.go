// Package casauth acquires authenticated cookie sessions from a CAS-like
// identity provider, optionally through a WebVPN reverse proxy.
//
// A login is a linear sequence of manually followed HTTP exchanges. Every
// response is recorded in a CookieStore owned by the flow; the outcome is a
// *Session or an error. Login failures are *Failure values carrying a
// FailureType; AsFailure turns any other error into an Unknown failure.
//
//	c, err := casauth.NewClient(casauth.Endpoints{AuthServer: "https://authserver.example.edu/authserver"}, nil)
//	sess, err := c.AuthLogin(ctx, casauth.Credentials{ID: id, Password: pw}, &casauth.LoginOptions{
//		Service: "https://library.example.edu/sso",
//	})
//	if casauth.IsFailure(err, casauth.NeedCaptcha) {
//		// show AsFailure(err).Captcha, then call AuthLogin again with
//		// Pending set to AsFailure(err).Pending.
//	}
package casauth
