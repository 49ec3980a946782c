// Package appview is the outbound profile-record lookup against the
// federated API. It owns the translation from transport failures into
// the fault taxonomy, including rate-limit wait hints.
package appview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/util"
	"github.com/bluesky-social/indigo/xrpc"
	"github.com/moodesky/plumage/avatar"
	"github.com/moodesky/plumage/faults"
	"github.com/moodesky/plumage/logging"
)

const (
	DefaultHost = "https://public.api.bsky.app"

	source       = "appview"
	opGetProfile = "app.bsky.actor.getProfile"
)

type Client struct {
	xrpc *xrpc.Client
	log  *logging.Logger
}

type ClientArgs struct {
	Host   string
	Client *http.Client
	Logger *logging.Logger
}

func NewClient(args *ClientArgs) (*Client, error) {
	if args.Host == "" {
		args.Host = DefaultHost
	}

	if args.Client == nil {
		args.Client = util.RobustHTTPClient()
	}

	if args.Logger == nil {
		args.Logger = logging.New(logging.Config{})
	}

	return &Client{
		xrpc: &xrpc.Client{
			Host:   args.Host,
			Client: args.Client,
		},
		log: args.Logger,
	}, nil
}

// GetProfile resolves one DID to its profile tuple. Failures come back
// as *faults.Record so the coordinator's retry policy can act on them
// directly.
func (c *Client) GetProfile(ctx context.Context, did string) (*avatar.Profile, error) {
	view, err := bsky.ActorGetProfile(ctx, c.xrpc, did)
	if err != nil {
		rec := c.asFault(err, did)
		c.log.Debug(source, "profile fetch failed", rec.Fields())
		return nil, rec
	}

	if view.Handle == "" {
		return nil, faults.New(faults.KindValidation, opGetProfile, did,
			fmt.Errorf("profile record missing handle"))
	}

	return &avatar.Profile{
		DID:         view.Did,
		Handle:      view.Handle,
		DisplayName: view.DisplayName,
		Avatar:      view.Avatar,
	}, nil
}

func (c *Client) asFault(err error, did string) *faults.Record {
	var xe *xrpc.Error
	if errors.As(err, &xe) {
		switch {
		case xe.StatusCode == http.StatusTooManyRequests:
			rec := faults.New(faults.KindRateLimit, opGetProfile, did, err)
			if xe.Ratelimit != nil {
				if wait := time.Until(xe.Ratelimit.Reset); wait > 0 {
					rec.RetryAfter = wait
				}
			}
			return rec
		case xe.StatusCode == http.StatusUnauthorized || xe.StatusCode == http.StatusForbidden:
			return faults.New(faults.KindPermission, opGetProfile, did, err)
		case xe.StatusCode >= 500:
			return faults.New(faults.KindAPI, opGetProfile, did, err)
		case xe.StatusCode == http.StatusBadRequest || xe.StatusCode == http.StatusNotFound:
			// not-found and malformed-actor responses from the appview
			return faults.New(faults.KindAPI, opGetProfile, did, err)
		default:
			return faults.New(faults.KindAPI, opGetProfile, did, err)
		}
	}

	// transport-level failures (dial errors, deadlines) have no status
	// code; the classifier sorts them into NETWORK vs TIMEOUT
	return faults.From(err, opGetProfile, did)
}
