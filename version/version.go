// Package version carries the module's own build identity, adapted from
// the teacher's version/version.go: a package name plus version and
// revision strings that may be set at build time via -ldflags, with a
// safe fallback when they are not.
package version

// PackageName identifies this module in tooling output. It is not part of
// the manifest's serializing_package_version field, which holds String().
const PackageName = "github.com/modelpack/modelpack"

// Version and Revision are normally overridden at build time:
//
//	go build -ldflags "-X github.com/modelpack/modelpack/version.Version=1.4.0 -X github.com/modelpack/modelpack/version.Revision=$(git rev-parse HEAD)"
var (
	Version  = "0.0.0-dev"
	Revision = "unknown"
)

// Package returns the module's import path.
func Package() string { return PackageName }

// String returns "<version> (<revision>)", the form written into the
// manifest's serializing_package_version field.
func String() string {
	return Version + " (" + Revision + ")"
}
