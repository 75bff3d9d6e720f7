package manifestv3

import "runtime/debug"

// installedPackages lists the module's resolved dependencies, the Go
// analogue of the reference implementation's pip-freeze-style provenance
// record (original_source/special_k/api.py). A binary built without
// module information (e.g. `go run` on a single file) yields an empty
// list rather than an error, since this field is informational only.
func installedPackages() []string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	packages := make([]string, 0, len(info.Deps))
	for _, dep := range info.Deps {
		packages = append(packages, dep.Path+"@"+dep.Version)
	}
	return packages
}
