package vaulthttp

import (
	"net/http"

	vaultapi "github.com/goliatone/go-vault-export/adapters/api"
)

// RequestDecoder parses a plain HTTP request into an export submission,
// for callers embedding exports in their own handlers without the
// controller.
type RequestDecoder interface {
	Decode(r *http.Request) (vaultapi.DecodedRequest, error)
}

// JSONRequestDecoder decodes JSON bodies from plain HTTP requests.
type JSONRequestDecoder struct{}

// Decode decodes a JSON request body into an export submission.
func (d JSONRequestDecoder) Decode(r *http.Request) (vaultapi.DecodedRequest, error) {
	return vaultapi.JSONRequestDecoder{}.Decode(httpRequest{r: r})
}

// QueryRequestDecoder decodes querystring submissions from plain HTTP
// requests.
type QueryRequestDecoder struct{}

// Decode parses query params into an export submission.
func (d QueryRequestDecoder) Decode(r *http.Request) (vaultapi.DecodedRequest, error) {
	return vaultapi.QueryRequestDecoder{}.Decode(httpRequest{r: r})
}
