package mesh

import "errors"

// ErrNoLocalSource indicates an outbound call cannot originate media.
var ErrNoLocalSource = errors.New("no local media source")
