package twitter

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dghubble/go-twitter/twitter"
	errs "tweetcollector/pkg/errors"
)

// API error codes the collector distinguishes
const (
	codeCouldNotAuthenticate = 32
	codeNoUserMatches        = 17
	codePageDoesNotExist     = 34
	codeUserNotFound         = 50
	codeSuspended            = 63
	codeAccountSuspended     = 64
	codeRateLimitExceeded    = 88
	codeInvalidToken         = 89
	codeOverCapacity         = 130
	codeInternalError        = 131
	codeTimestampOutOfBounds = 135
	codeNotAuthorized        = 179
	codeBadAuthentication    = 215
)

// classifyResponse converts a timeline response into a typed error, or nil
// for a successful response. Both the HTTP status and the API error body are
// consulted: the library reports no error for a non-2xx status whose body
// carries no "errors" array.
func classifyResponse(userID int64, resp *http.Response, err error) *errs.Error {
	if resp == nil {
		if err == nil {
			return nil
		}
		e := errs.Wrap(errs.ErrorTypeNetwork, err, fmt.Sprintf("request failed: %v", err))
		e.UserID = userID
		return e
	}

	status := resp.StatusCode
	if err == nil && status >= 200 && status < 300 {
		return nil
	}

	code := status
	apiCode := 0
	message := http.StatusText(status)

	var apiErr twitter.APIError
	if errors.As(err, &apiErr) && !apiErr.Empty() {
		apiCode = apiErr.Errors[0].Code
		code = apiCode
		message = apiErr.Errors[0].Message
	} else if err != nil {
		message = err.Error()
	}

	e := &errs.Error{
		Type:    typeFor(status, apiCode, err),
		Message: message,
		Code:    code,
		UserID:  userID,
		Err:     err,
	}
	return e
}

func typeFor(status, apiCode int, err error) errs.ErrorType {
	switch apiCode {
	case codeRateLimitExceeded:
		return errs.ErrorTypeRateLimit
	case codeCouldNotAuthenticate, codeInvalidToken, codeBadAuthentication, codeTimestampOutOfBounds:
		return errs.ErrorTypeAuth
	case codeNotAuthorized:
		return errs.ErrorTypeProtected
	case codeNoUserMatches, codePageDoesNotExist, codeUserNotFound:
		return errs.ErrorTypeNotFound
	case codeSuspended, codeAccountSuspended:
		return errs.ErrorTypeSuspended
	case codeOverCapacity, codeInternalError:
		return errs.ErrorTypeServerError
	}

	switch {
	case status == http.StatusTooManyRequests:
		return errs.ErrorTypeRateLimit
	case status == http.StatusUnauthorized:
		// the timeline of a protected account answers a bare 401
		return errs.ErrorTypeProtected
	case status == http.StatusNotFound:
		return errs.ErrorTypeNotFound
	case status == http.StatusForbidden:
		return errs.ErrorTypeSuspended
	case status >= 500:
		return errs.ErrorTypeServerError
	case status >= 200 && status < 300 && err != nil:
		return errs.ErrorTypeParsing
	default:
		return errs.ErrorTypeUnknown
	}
}
