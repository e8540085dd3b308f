package ledger

import (
	"errors"
	"fmt"

	"github.com/transmailifier/transmailifier/internal/config"
	"github.com/transmailifier/transmailifier/internal/sheet"
)

// ErrUnknownProfile is returned for a profile name missing from the config.
var ErrUnknownProfile = errors.New("no such profile")

// ProfileMismatchError reports a file whose validator cell does not match
// the chosen profile.
type ProfileMismatchError struct {
	Profile    string
	Expected   string
	Actual     string
	Suggestion string // profile whose validator matches the file, if any
}

func (e *ProfileMismatchError) Error() string {
	msg := fmt.Sprintf("profile / file mismatch: profile %q expects %q, file contains %q", e.Profile, e.Expected, e.Actual)
	if e.Suggestion != "" {
		msg += fmt.Sprintf("; did you mean to use %q profile instead?", e.Suggestion)
	}
	return msg
}

// Reader opens statement files with a named profile.
type Reader struct {
	cfg    *config.Config
	sheets *sheet.Registry
}

// NewReader creates a Reader. A nil registry means sheet.DefaultRegistry.
func NewReader(cfg *config.Config, sheets *sheet.Registry) *Reader {
	if sheets == nil {
		sheets = sheet.DefaultRegistry()
	}
	return &Reader{cfg: cfg, sheets: sheets}
}

// Read opens path and binds it to the named profile. The caller closes the
// returned Ledger.
func (r *Reader) Read(path, profileName string) (*Ledger, error) {
	if _, ok := r.cfg.Profile(profileName); !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownProfile, profileName)
	}
	s, closer, err := r.sheets.Open(path)
	if err != nil {
		return nil, err
	}
	l, err := r.ReadSheet(s, profileName)
	if err != nil {
		if cerr := closer.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing %s: %w", path, cerr))
		}
		return nil, err
	}
	l.closer = closer
	return l, nil
}

// ReadSheet checks the profile's validator cell against s, then binds the
// sheet to the profile. The check runs first so a file meant for another
// profile is reported as a mismatch rather than as missing headers.
func (r *Reader) ReadSheet(s sheet.Sheet, profileName string) (*Ledger, error) {
	profile, ok := r.cfg.Profile(profileName)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownProfile, profileName)
	}

	if v := profile.Config.Validator; v != nil {
		if actual, _ := fetch(s, v.Cell); actual != v.Value {
			return nil, &ProfileMismatchError{
				Profile:    profileName,
				Expected:   v.Value,
				Actual:     actual,
				Suggestion: r.suggest(s, profileName),
			}
		}
	}
	return Open(s, profile)
}

// suggest returns the first other profile, in name order, whose own
// validator matches s.
func (r *Reader) suggest(s sheet.Sheet, current string) string {
	for _, name := range r.cfg.ProfileNames() {
		if name == current {
			continue
		}
		candidate, _ := r.cfg.Profile(name)
		v := candidate.Config.Validator
		if v == nil {
			continue
		}
		if actual, ok := fetch(s, v.Cell); ok && actual == v.Value {
			return name
		}
	}
	return ""
}
