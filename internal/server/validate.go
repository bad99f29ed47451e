package server

import "fmt"

const maxSlugLength = 100

// ValidateSlug rejects environment slugs that cannot have come from our own
// configuration, before they reach a database query.
func ValidateSlug(slug string) error {
	if len(slug) > maxSlugLength {
		return fmt.Errorf("slug exceeds %d characters", maxSlugLength)
	}

	for _, c := range slug {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return fmt.Errorf("slug contains invalid character %q", c)
		}
	}

	return nil
}
