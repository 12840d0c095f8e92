// Package validate holds value checks shared by config fields and web forms.
package validate

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidEmail reports a malformed e-mail address.
	ErrInvalidEmail = errors.New("You have to enter a valid e-mail address.")
	// ErrEmpty reports a value made only of whitespace.
	ErrEmpty = errors.New("The text must not be empty.")
	// ErrInvalidNetAddr reports a value that is neither a host nor host:port.
	ErrInvalidNetAddr = errors.New("You have to enter a valid net address.")
	// ErrNonNumericPort reports a host:port pair with a non-numeric port.
	ErrNonNumericPort = errors.New("The port has to be numeric")
)

// maxEmailLength bounds accepted e-mail addresses.
const maxEmailLength = 250

// mailRe checks the local part of an address and requires at least one character after the @.
var mailRe = regexp.MustCompile(`(?i)^(?:[a-z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+(?:\.[a-z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+)*|"(?:[\x01-\x08\x0b\x0c\x0e-\x1f\x21\x23-\x5b\x5d-\x7f]|\\[\x01-\x09\x0b\x0c\x0e-\x7f])*")@.`)

// Email checks that value looks like an e-mail address. Only the local part is
// checked strictly; anything after the @ is accepted.
func Email(value string) error {
	if len(value) > maxEmailLength || !mailRe.MatchString(value) {
		return ErrInvalidEmail
	}
	return nil
}

// NotEmpty checks that value holds at least one non-whitespace character.
func NotEmpty(value string) error {
	if strings.TrimSpace(value) == "" {
		return ErrEmpty
	}
	return nil
}

// NetAddr checks that value is a host name or IPv4 address, optionally with a port.
func NetAddr(value string) error {
	items := strings.Fields(value)
	if len(items) != 1 {
		return ErrInvalidNetAddr
	}
	parts := strings.Split(items[0], ":")
	switch len(parts) {
	case 1:
		return nil
	case 2:
		if parts[1] == "" || strings.Trim(parts[1], "0123456789") != "" {
			return ErrNonNumericPort
		}
		return nil
	default:
		return ErrInvalidNetAddr
	}
}
