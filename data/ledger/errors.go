package ledger

import "errors"

var ErrMalformed = errors.New("error malformed ledger")
