// Package domain defines the read-only access policy evaluator.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var ErrContentNotFound = errors.New("content_not_found")

// Service answers whether a user may consume a content item. The predicates
// are exactly the ones the settlement flows enforce at write time: ownership,
// free pricing, a completed purchase, or an unexpired subscription to the
// content's creator. A zero userID is anonymous and only reaches free
// content.
type Service interface {
	HasAccess(ctx context.Context, contentID, userID snowflake.ID) (bool, error)
}
