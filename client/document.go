package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/alivecode/aliot-go/api"
)

// GetDoc reads the project document over HTTP, or one of its fields when
// field is not empty. A successful empty answer yields nil.
func (c *Client) GetDoc(ctx context.Context, field string) (any, error) {
	doc, err := c.documents()
	if err != nil {
		return nil, err
	}

	var v any
	if field != "" {
		v, err = doc.GetField(ctx, field)
	} else {
		v, err = doc.GetDoc(ctx)
	}
	if err == nil {
		return v, nil
	}

	what := "the document"
	if field != "" {
		what = fmt.Sprintf("the field %s", field)
	}
	var statusErr *api.StatusError
	switch {
	case errors.Is(err, api.ErrForbidden):
		c.reporter.Failure(fmt.Sprintf("While getting %s, request was Forbidden due to permission errors or project missing.", what))
	case errors.Is(err, api.ErrServerFailure):
		c.reporter.Failure(fmt.Sprintf("While getting %s, something went wrong with the server, please try again.", what))
	case errors.As(err, &statusErr):
		c.reporter.Failure(fmt.Sprintf("While getting %s, please try again.", what), "status", statusErr.Code, "body", statusErr.Body)
	default:
		c.reporter.Failure(fmt.Sprintf("While getting %s, the request failed.", what), "error", err)
	}
	return nil, err
}

func (c *Client) documents() (*api.Client, error) {
	c.docOnce.Do(func() {
		if c.config.APIURL == "" {
			c.docErr = fmt.Errorf("%w: api_url for object %q", ErrMissingConfig, c.Name)
			return
		}
		c.doc, c.docErr = api.New(c.config.APIURL, c.config.ObjectID)
	})
	return c.doc, c.docErr
}
