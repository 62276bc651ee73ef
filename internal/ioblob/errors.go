package ioblob

import "errors"

// ErrParse is wrapped by every reader error; the message names the file
// and line of the failure, per the halt-and-report policy for input-parse
// errors.
var ErrParse = errors.New("ioblob: parse error")
