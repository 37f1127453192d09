// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

// Set at release time with -ldflags "-X".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// UserAgent is sent by folio's outbound HTTP clients.
func UserAgent() string {
	return "folio/" + Version
}
