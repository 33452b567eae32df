package enums

import "fmt"

// PackageType identifies the wash package booked for a job. The custom
// package carries a caller-supplied platform fee, the fixed packages use
// configured defaults.
type PackageType string

const (
	PackageTypeBasic  PackageType = "basic"
	PackageTypeDeluxe PackageType = "deluxe"
	PackageTypeCustom PackageType = "custom"
)

func (p PackageType) IsValid() bool {
	switch p {
	case PackageTypeBasic, PackageTypeDeluxe, PackageTypeCustom:
		return true
	default:
		return false
	}
}

func ParsePackageType(raw string) (PackageType, error) {
	pkg := PackageType(raw)
	if !pkg.IsValid() {
		return "", fmt.Errorf("invalid package type %q", raw)
	}
	return pkg, nil
}
