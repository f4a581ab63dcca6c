package llm

import "errors"

var errNoJSON = errors.New("no JSON object found in response")

// ErrNoJSON reports whether err came from a response with no decodable JSON.
func ErrNoJSON(err error) bool {
	return errors.Is(err, errNoJSON)
}
