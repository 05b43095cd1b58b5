// Package secrets provides pluggable providers for loading the baseline key
// and other sensitive configuration at startup. Secrets are resolved once and
// never logged.
package secrets
