package server

import (
	"strings"

	"github.com/Azure/go-autorest/autorest/to"
	"github.com/labstack/echo/v4"
	"github.com/moodesky/plumage/avatar"
	"github.com/moodesky/plumage/internal/helpers"
)

const maxBatchSize = 50

type resultView struct {
	Did       string          `json:"did"`
	Success   bool            `json:"success"`
	FromCache bool            `json:"fromCache"`
	Source    string          `json:"source,omitempty"`
	Profile   *avatar.Profile `json:"profile,omitempty"`
	Error     *errorView      `json:"error,omitempty"`
}

type errorView struct {
	Kind      string `json:"kind"`
	Retryable bool   `json:"retryable"`
	Message   string `json:"message"`
}

func viewOf(r avatar.Result) resultView {
	v := resultView{
		Did:       r.DID,
		Success:   r.OK(),
		FromCache: r.FromCache,
		Source:    string(r.Source),
		Profile:   r.Profile,
	}
	if r.Err != nil {
		v.Error = &errorView{
			Kind:      string(r.Err.Kind),
			Retryable: r.Err.Retryable,
			Message:   r.Err.Error(),
		}
	}
	return v
}

type getAvatarRequest struct {
	Did string `param:"did" validate:"required,atproto-did"`
}

func (s *Server) handleGetAvatar(e echo.Context) error {
	var req getAvatarRequest
	if err := e.Bind(&req); err != nil {
		return helpers.InputError(e, nil)
	}

	if err := e.Validate(&req); err != nil {
		return helpers.InputError(e, to.StringPtr("InvalidDid"))
	}

	res := s.avatars.GetAvatar(e.Request().Context(), req.Did)
	return e.JSON(200, viewOf(res))
}

func (s *Server) handleGetAvatars(e echo.Context) error {
	raw := e.QueryParam("dids")
	if raw == "" {
		return helpers.InputError(e, to.StringPtr("MissingDids"))
	}

	dids := strings.Split(raw, ",")
	if len(dids) > maxBatchSize {
		return helpers.InputError(e, to.StringPtr("TooManyDids"))
	}

	results := s.avatars.GetAvatars(e.Request().Context(), dids)

	views := make(map[string]resultView, len(results))
	for did, r := range results {
		views[did] = viewOf(r)
	}

	return e.JSON(200, views)
}
