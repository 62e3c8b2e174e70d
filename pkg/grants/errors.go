package grants

import "errors"

// ErrProfileMissing is returned by IssueGrant when the user's profile
// document does not exist. Issuance never creates the parent document.
var ErrProfileMissing = errors.New("grants: user profile does not exist")

// IsProfileMissing checks whether an error is a missing-profile failure.
func IsProfileMissing(err error) bool {
	return errors.Is(err, ErrProfileMissing)
}
