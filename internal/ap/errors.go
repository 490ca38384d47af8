package ap

import "errors"

// Codec-level sentinel errors. The inbox/dispatch layers classify
// these via errors.Is and translate per the §7 table (CodecError -> 400).
var (
	ErrUnknownType        = errors.New("ap: unrecognized activity type")
	ErrUnknownVariant     = errors.New("ap: unrecognized (activity, object) variant")
	ErrAnnounceNotAllowed = errors.New("ap: announce object is not in the announcable subset")
	ErrMissingID          = errors.New("ap: activity missing id")
	ErrMalformedObject    = errors.New("ap: malformed object/target")
)
