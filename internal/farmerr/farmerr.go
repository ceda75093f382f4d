// Package farmerr classifies business-rule failures and renders them in the
// caller's language.
package farmerr

import (
	"errors"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Kind is the class of a business-rule failure.
type Kind int

const (
	// Unknown is returned by KindOf for errors that are not *Error.
	Unknown Kind = iota
	// Validation covers malformed or out-of-range input.
	Validation
	// Precondition covers actions attempted from the wrong state.
	Precondition
	// Integrity covers actions that would break a structural rule.
	Integrity
	// NotFound covers references to records that do not exist.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Precondition:
		return "precondition"
	case Integrity:
		return "integrity"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Key is a catalog message key; Args fill
// its verbs.
type Error struct {
	Kind Kind
	Key  string
	Args []any
}

func (e *Error) Error() string {
	return message.NewPrinter(language.English).Sprintf(e.Key, e.Args...)
}

// Is matches another *Error with the same kind and key.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Key == e.Key
}

// New builds an Error.
func New(kind Kind, key string, args ...any) *Error {
	return &Error{Kind: kind, Key: key, Args: args}
}

// Invalid builds a Validation error.
func Invalid(key string, args ...any) *Error { return New(Validation, key, args...) }

// Blocked builds a Precondition error.
func Blocked(key string, args ...any) *Error { return New(Precondition, key, args...) }

// Forbidden builds an Integrity error.
func Forbidden(key string, args ...any) *Error { return New(Integrity, key, args...) }

// Missing builds a NotFound error for the named entity.
func Missing(entity string, id any) *Error { return New(NotFound, MsgNotFound, entity, id) }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Localize renders err in the given language. Errors that are not *Error
// are returned verbatim.
func Localize(err error, tag language.Tag) string {
	var fe *Error
	if !errors.As(err, &fe) {
		return err.Error()
	}
	return message.NewPrinter(tag).Sprintf(fe.Key, fe.Args...)
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Arabic})

// MatchLanguage picks a supported tag from an Accept-Language header value.
func MatchLanguage(accept string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, _ := matcher.Match(tags...)
	if idx == 1 {
		return language.Arabic
	}
	return language.English
}
