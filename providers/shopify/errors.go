package shopify

import "errors"

// ErrThrottleBudgetExhausted reports that an orders page stayed throttled
// through every retry the reconciler was willing to spend on it.
var ErrThrottleBudgetExhausted = errors.New("providers/shopify: admin api throttle retries exhausted")
