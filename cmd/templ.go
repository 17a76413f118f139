package cmd

const HELP_TEMPL = `Usage: {{if .UsageText}}{{.UsageText}}{{else}}{{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{end}}
{{.Description}}{{if .VisibleCommands}}
Commands:{{range .VisibleCategories}}{{if .Name}}

{{.Name}}:{{range .VisibleCommands}}
  {{join .Names ", "}}{{"\t"}}{{.Usage}}{{end}}{{else}}{{range .VisibleCommands}}
{{"\t"}}{{index .Names 0}}{{"\t:\t"}}{{.Usage}}{{end}}{{end}}{{end}}{{end}}{{if .VisibleFlags}}

Global Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

Use "{{.HelpName}} help <command>" for more information about any command.

`

const CMD_HELP_TEMPL = `{{if .Description}}{{.Description}}{{else}}{{.HelpName}} - {{.Usage}}

{{end}}Usage:
        {{.HelpName}} {{if .UsageText}}{{.UsageText}}{{else}}[arguments...]{{end}}{{if .VisibleFlags}}

Supported Flags:{{range .VisibleFlags}}
  {{.}}{{end}}{{end}}

`

const DESCRIPTION = `
warpcas logs into campus portals on behalf of its callers. It drives the
CAS identity provider and the WebVPN tunnel, answers captcha challenges
through a side channel and hands back ready-to-use cookie sessions over
REST and JSON-RPC.
`

const (
	ServeDescription = `The serve command runs the login daemon. It exposes the
REST API under /api, JSON-RPC 2.0 at /jsonrpc and /jsonrpc/ws, and
Prometheus metrics at /metrics.

Example:
        warpcas serve
        warpcas serve --listen 0.0.0.0:3850

`
	LoginDescription = `The login command logs an id into one portal and prints
the resulting cookie header. Use --vpn to log into the WebVPN tunnel
itself. The password may also come from $WARPCAS_PASSWORD.
--cookie-jar also saves the session as a Netscape cookie file for
curl -b or wget --load-cookies.

Example:
        warpcas login -p library -i 2023000001
        warpcas login --vpn -i 2023000001
        warpcas login -p oa -i 2023000001 -o cookies.txt

`
	CaptchaDescription = `The captcha command asks the identity provider whether an
id must solve a slider captcha before its next login.

Example:
        warpcas captcha 2023000001

`
	PortalsDescription = `The portals command lists the portals the daemon can log
into, either from the config file or the built-in list.

Example:
        warpcas portals

`
	BlacklistDescription = `The blacklist command manages ids whose logins the daemon
refuses.

Example:
        warpcas blacklist add 2023000001 "shared account"
        warpcas blacklist list

`
	HistoryDescription = `The history command prints the most recent login attempts
recorded by the daemon, optionally for a single id.

Example:
        warpcas history
        warpcas history -i 2023000001 -n 5

`
)
