// Package auth implements the login backends that turn credentials into a
// session descriptor.
package auth

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"

	"github.com/sjzar/xivlauncher/internal/errors"
	"github.com/sjzar/xivlauncher/internal/model"
)

// maxResponseSize bounds login response reads. Login pages and JSON
// replies are a few kilobytes.
const maxResponseSize int64 = 4 << 20

// Backends holds one instance of each login variant. Login dispatches on
// the account's backend tag.
type Backends struct {
	Official  *Official
	Alternate *Alternate
}

func (b *Backends) Login(ctx context.Context, creds model.Credentials, p *model.Profile, account *model.Account) (*model.LoginAuth, error) {
	if account == nil {
		return nil, errors.MissingAccount(p.Name)
	}

	log.Info().
		Str("profile", p.Name).
		Str("backend", string(account.Backend)).
		Str("account", account.ID).
		Msg("logging in")

	switch account.Backend {
	case model.BackendAlternate:
		return b.Alternate.Login(ctx, creds, account)
	case model.BackendOfficial, "":
		return b.Official.Login(ctx, creds, p, account)
	}
	return nil, errors.UnknownBackend(string(account.Backend))
}

// readBody reads a bounded response body, undoing any content encoding
// the server applied. Requests that set Accept-Encoding themselves do not
// get transparent decompression from net/http.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = io.LimitReader(resp.Body, maxResponseSize)
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = io.LimitReader(zr, maxResponseSize)
	case "deflate":
		fr := flate.NewReader(r)
		defer fr.Close()
		r = io.LimitReader(fr, maxResponseSize)
	}
	return io.ReadAll(r)
}
