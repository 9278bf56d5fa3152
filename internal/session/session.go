// Package session remembers whether the browser has unlocked the portfolio.
package session

import (
	"errors"
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	sessionName      = "sessionid"
	authenticatedKey = "authenticated"
)

var ErrNoSecretKey = errors.New("no SECRET_KEY variable set")

// Store keeps the login state in a signed cookie.
type Store struct {
	cookies *sessions.CookieStore
}

// New creates cookie storage signed with secretKey.
func New(secretKey string) (*Store, error) {
	if len(secretKey) == 0 {
		return nil, ErrNoSecretKey
	}

	cookies := sessions.NewCookieStore([]byte(secretKey))
	cookies.Options.HttpOnly = true
	cookies.Options.SameSite = http.SameSiteLaxMode

	return &Store{cookies: cookies}, nil
}

// Authenticated reports whether the request carries an unlocked session.
func (store *Store) Authenticated(request *http.Request) bool {
	session, err := store.cookies.Get(request, sessionName)

	if err != nil {
		return false
	}

	authenticated, ok := session.Values[authenticatedKey].(bool)

	return ok && authenticated
}

// Save marks the session as unlocked.
func (store *Store) Save(writer http.ResponseWriter, request *http.Request) error {
	session, _ := store.cookies.Get(request, sessionName)
	session.Values[authenticatedKey] = true

	return session.Save(request, writer)
}

// Clear removes everything from the session.
func (store *Store) Clear(writer http.ResponseWriter, request *http.Request) error {
	session, _ := store.cookies.Get(request, sessionName)

	for key := range session.Values {
		delete(session.Values, key)
	}

	session.Options.MaxAge = -1

	return session.Save(request, writer)
}
