// Package templates embeds the outbound message templates into the binary,
// so rendering does not depend on the process working directory.
package templates

import "embed"

//go:embed *.html
var FS embed.FS
